package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/contestman/internal/channel"
	"github.com/hitoshi/contestman/internal/model"
)

// ChannelResult は1チャネル分の配信結果とチャネル名の組。
type ChannelResult struct {
	Channel model.Channel
	Result  channel.Result
}

// Recorder はチャネル配信のメトリクス記録インターフェース。
type Recorder interface {
	RecordNotificationSent(channel string)
	RecordNotificationFailed(channel string)
	RecordDispatchLatency(duration time.Duration)
}

// Dispatcher は1ユーザーへの通知を各チャネルに配信する。
// チャネル間に順序依存はなく、並行に送信して全結果の揃いを待つ。
type Dispatcher struct {
	transports []channel.Transport
	byName     map[model.Channel]channel.Transport
	recorder   Recorder
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(transports ...channel.Transport) *Dispatcher {
	byName := make(map[model.Channel]channel.Transport, len(transports))
	for _, t := range transports {
		byName[t.Name()] = t
	}
	return &Dispatcher{
		transports: transports,
		byName:     byName,
	}
}

// SetRecorder はメトリクス記録先を設定する。未設定の場合は記録しない。
func (d *Dispatcher) SetRecorder(recorder Recorder) {
	d.recorder = recorder
}

// ChannelEnabled は指定チャネルのトランスポートが登録済みかつ
// 設定済みであるかを返す。ダイジェストのように対象チャネルが
// 固定の呼び出し元が、配信試行前の事前判定に使う。
func (d *Dispatcher) ChannelEnabled(name model.Channel) bool {
	t, ok := d.byName[name]
	return ok && t.IsEnabled()
}

// QualifyingChannels はユーザーに対し配信可能なチャネルを返す。
// 条件: ユーザーがチャネルを有効化している、チャネルに必要な宛先情報
// （メールアドレス・電話番号・デバイストークン）を持つ、
// かつトランスポート自体が設定済みであること。
// 未設定チャネルは失敗扱いせず、対象から静かに除外する。
func (d *Dispatcher) QualifyingChannels(user *model.User) []model.Channel {
	qualified := make([]model.Channel, 0, len(d.transports))
	for _, t := range d.transports {
		if !t.IsEnabled() {
			continue
		}
		if !userAcceptsChannel(user, t.Name()) {
			continue
		}
		qualified = append(qualified, t.Name())
	}
	return qualified
}

// Dispatch は指定チャネル群に通知を並行送信し、全結果を返す。
// 結果の揃いを待ってから返す（fire-and-forgetにしない）。
// 個々の送信失敗はChannelResultとして返し、エラー戻り値にはしない。
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	user *model.User,
	n *model.Notification,
	channels []model.Channel,
) []ChannelResult {
	results := make([]ChannelResult, len(channels))
	start := time.Now()

	var wg sync.WaitGroup
	for i, name := range channels {
		t, ok := d.byName[name]
		if !ok {
			results[i] = ChannelResult{
				Channel: name,
				Result:  channel.Result{Success: false, Error: errUnknownChannel(name)},
			}
			continue
		}

		wg.Add(1)
		go func(i int, t channel.Transport) {
			defer wg.Done()
			result := t.Send(ctx, user, n)
			if !result.Success {
				slog.Warn("チャネル配信に失敗しました",
					"channel", t.Name(),
					"user_id", user.ID,
					"notification_id", n.ID,
					"error", result.Error,
				)
			}
			results[i] = ChannelResult{Channel: t.Name(), Result: result}
		}(i, t)
	}
	wg.Wait()

	if d.recorder != nil {
		d.recorder.RecordDispatchLatency(time.Since(start))
		for _, cr := range results {
			if cr.Result.Success {
				d.recorder.RecordNotificationSent(string(cr.Channel))
			} else {
				d.recorder.RecordNotificationFailed(string(cr.Channel))
			}
		}
	}

	return results
}

// userAcceptsChannel はユーザーの設定と宛先情報からチャネルの可否を判定する。
func userAcceptsChannel(user *model.User, name model.Channel) bool {
	switch name {
	case model.ChannelEmail:
		return user.Channels.Email && user.Email != ""
	case model.ChannelMessaging:
		return user.Channels.Messaging && user.Phone != ""
	case model.ChannelPush:
		return user.Channels.Push && user.DeviceToken != ""
	default:
		return false
	}
}
