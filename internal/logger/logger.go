// Package logger はエンジン全体で使用するJSON構造化ログの設定を提供する。
// 同期ワーカー・通知パイプライン・APIサーバーは全て同一のslogロガーを共有し、
// ログ集約基盤でservice属性によりフィルタできるようにする。
package logger

import (
	"io"
	"log/slog"
	"os"
)

// serviceName は全ログエントリに付与されるサービス識別子。
const serviceName = "contestman"

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// 全エントリにservice属性が付与される。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler).With(slog.String("service", serviceName))
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// serve/worker両モードの起動時に1回だけ呼ばれる。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w)
	slog.SetDefault(logger)
}
