// Package reload は記事インデックスのバックグラウンド再構築を提供する。
// 定期的なディレクトリ再読み込みと、APIからの強制再読み込みトリガーを含む。
package reload

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/blogman/internal/content"
)

// Notifier はスナップショット更新後のWebmention送信インターフェース。
// 実装はブロックせずに送信をスケジュールしなければならない。
type Notifier interface {
	NotifyUpdated(ctx context.Context, old, current *content.Snapshot)
}

// ReloadRecorder は再構築結果のメトリクス記録インターフェース。
type ReloadRecorder interface {
	RecordReloadSuccess(articleCount int)
	RecordReloadFailure()
}

// Worker は記事インデックスの定期再構築ワーカー。
// インターバルごとにコンテンツディレクトリを再読み込みし、
// 成功時には差分をもとにWebmention送信を起動する。
type Worker struct {
	index    *content.Index
	notifier Notifier
	metrics  ReloadRecorder
	logger   *slog.Logger
	interval time.Duration
	trigger  chan struct{}
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// notifierはnilでもよく、その場合は送信を行わない。
func NewWorker(index *content.Index, notifier Notifier, metrics ReloadRecorder, logger *slog.Logger, interval time.Duration) *Worker {
	return &Worker{
		index:    index,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger は次の再読み込みを即座にスケジュールする。
// 既にスケジュール済みの場合は何もしない。呼び出しはブロックしない。
func (w *Worker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Start はインターバルごとの再読み込みループを起動する。
// 起動直後に1回実行し、コンテキストのキャンセルで停止する。
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("再読み込みワーカーを開始しました",
		slog.Duration("interval", w.interval),
	)

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("再読み込みワーカーを停止しました")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.trigger:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce は再読み込みを1回実行する。失敗時は直前のスナップショットが
// 維持されるため、読者への影響はない。成功時は差分をnotifierに渡して
// Webmention送信をスケジュールする。送信の完了は待たないため、
// 再読み込みループが外部サイトの応答に左右されることはない。
func (w *Worker) RunOnce(ctx context.Context) {
	start := time.Now()
	old := w.index.Snapshot()

	snap, err := w.index.Reload(ctx)
	if err != nil {
		w.metrics.RecordReloadFailure()
		w.logger.Error("インデックスの再構築に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	w.metrics.RecordReloadSuccess(snap.Len())
	w.logger.Info("インデックスを再構築しました",
		slog.Uint64("generation", snap.Generation()),
		slog.Int("articles", snap.Len()),
		slog.Duration("duration", time.Since(start)),
	)

	if w.notifier != nil {
		w.notifier.NotifyUpdated(ctx, old, snap)
	}
}
