package channel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/hitoshi/contestman/internal/model"
)

// sesClient はテストで差し替え可能なSES APIの最小インターフェース。
type sesClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailTransport はAWS SES経由のメールチャネル。
type EmailTransport struct {
	client   sesClient
	fromAddr string
	fromName string
}

var _ Transport = (*EmailTransport)(nil)

// EmailConfig はメールチャネルの設定。
type EmailConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	FromAddr  string
	FromName  string
}

// NewEmailTransport はEmailTransportを生成する。
// 資格情報が未設定の場合はクライアントを初期化せず、IsEnabledがfalseになる。
func NewEmailTransport(cfg EmailConfig) *EmailTransport {
	t := &EmailTransport{
		fromAddr: cfg.FromAddr,
		fromName: cfg.FromName,
	}

	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return t
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		slog.Warn("SESクライアントの初期化に失敗しました。メールチャネルは無効になります",
			"error", err,
		)
		return t
	}

	t.client = sesv2.NewFromConfig(awsCfg)
	return t
}

// Name はチャネル名を返す。
func (t *EmailTransport) Name() model.Channel {
	return model.ChannelEmail
}

// IsEnabled はSESクライアントが初期化済みかを返す。
func (t *EmailTransport) IsEnabled() bool {
	return t.client != nil
}

// Send はSES経由で通知メールを配信する。
func (t *EmailTransport) Send(ctx context.Context, user *model.User, n *model.Notification) Result {
	if t.client == nil {
		return failure(fmt.Errorf("メールチャネルが初期化されていません"))
	}
	if user.Email == "" {
		return failure(fmt.Errorf("ユーザーのメールアドレスが未設定です"))
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", t.fromName, t.fromAddr)),
		Destination:      &types.Destination{ToAddresses: []string{user.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(n.Title),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(n.Message),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("notification_type"), Value: aws.String(string(n.Type))},
		},
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return failure(fmt.Errorf("SES送信に失敗しました: %w", err))
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	return Result{Success: true, MessageID: messageID}
}
