package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/contestman/internal/security"
)

// ClientConfig はプラットフォームAPIクライアントの動作設定。
type ClientConfig struct {
	// Timeout はHTTPリクエスト全体のタイムアウト。
	Timeout time.Duration
	// MaxBodySize はレスポンスボディの最大サイズ（バイト）。
	MaxBodySize int64
	// RetryCount は一時的エラー時の最大リトライ回数。
	RetryCount int
	// RetryBackoff はリトライ間の待機時間。
	RetryBackoff time.Duration
	// RequestsPerSecond はアップストリームへの秒間リクエスト上限。
	// 0以下の場合は2req/secをデフォルトとする。
	RequestsPerSecond float64
}

// Client はプラットフォームAPI向けの共有HTTPクライアント。
// SSRF防止済みのhttp.Client、レート制限、固定バックオフのリトライを提供する。
// 全アダプタはこのクライアント経由でアップストリームと通信する。
type Client struct {
	httpClient   *http.Client
	guard        security.SSRFGuardService
	limiter      *rate.Limiter
	logger       *slog.Logger
	maxBodySize  int64
	retryCount   int
	retryBackoff time.Duration
}

// NewClient は共有HTTPクライアントを生成する。
// guardが生成するHTTPクライアントを内部で使用するため、
// プライベートIPやメタデータIPへのリクエストは透過的にブロックされる。
func NewClient(guard security.SSRFGuardService, logger *slog.Logger, cfg ClientConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		httpClient:   guard.NewSafeClient(cfg.Timeout, cfg.MaxBodySize),
		guard:        guard,
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		logger:       logger,
		maxBodySize:  cfg.MaxBodySize,
		retryCount:   cfg.RetryCount,
		retryBackoff: cfg.RetryBackoff,
	}
}

// GetJSON は指定URLにGETリクエストを送り、レスポンスJSONをoutにデコードする。
// ネットワークエラーおよび5xx/429レスポンスは固定バックオフでリトライする。
// 4xx（429を除く）は恒久的エラーとして即座に失敗する。
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// Check は指定URLへの疎通を確認する。レスポンスボディは破棄する。
func (c *Client) Check(ctx context.Context, url string) error {
	_, err := c.get(ctx, url)
	return err
}

// get はリトライ付きでGETリクエストを実行し、ボディ全体を返す。
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.guard.ValidateURL(url); err != nil {
		return nil, fmt.Errorf("URL検証に失敗しました: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			c.logger.Warn("リトライします",
				"url", url,
				"attempt", attempt,
				"backoff", c.retryBackoff.String(),
				"error", lastErr.Error(),
			)
			select {
			case <-time.After(c.retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("レート制限の待機に失敗しました: %w", err)
		}

		body, retryable, err := c.doOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("リトライ上限に達しました (attempts=%d): %w", c.retryCount+1, lastErr)
}

// doOnce は1回分のGETリクエストを実行する。
// retryableはネットワークエラー・5xx・429の場合にtrueとなる。
func (c *Client) doOnce(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "contestman/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// 続行
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, true, fmt.Errorf("一時的なHTTPエラー: status=%d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("HTTPエラー: status=%d", resp.StatusCode)
	}

	// 最大サイズ+1バイト読み、超過を検知する
	limited := io.LimitReader(resp.Body, c.maxBodySize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, true, fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}
	if int64(len(data)) > c.maxBodySize {
		return nil, false, fmt.Errorf("レスポンスサイズが上限を超えています (max=%dバイト)", c.maxBodySize)
	}

	return data, false, nil
}
