package webmention

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/blogman/internal/content"
	"github.com/hitoshi/blogman/internal/model"
)

// Rechecker は検証済みMentionの定期再検証を行う。ソースからの
// バックリンクが消えたMentionや、対象記事が削除されたMentionを
// 失効状態へ移行させる。
type Rechecker struct {
	store     MentionStore
	snaps     SnapshotSource
	verifier  SourceVerifier
	logger    *slog.Logger
	baseURL   string
	interval  time.Duration
	ttl       time.Duration
	batchSize int
}

// NewRechecker はRecheckerの新しいインスタンスを生成する。
func NewRechecker(store MentionStore, snaps SnapshotSource, verifier SourceVerifier, logger *slog.Logger, baseURL string, interval, ttl time.Duration, batchSize int) *Rechecker {
	return &Rechecker{
		store:     store,
		snaps:     snaps,
		verifier:  verifier,
		logger:    logger,
		baseURL:   baseURL,
		interval:  interval,
		ttl:       ttl,
		batchSize: batchSize,
	}
}

// Start は再検証ループを開始する。起動直後に一度実行し、以降は
// インターバルごとに繰り返す。ctxのキャンセルで停止する。
func (r *Rechecker) Start(ctx context.Context) {
	r.logger.Info("Mention再検証ワーカーを開始します",
		slog.Duration("interval", r.interval),
		slog.Duration("ttl", r.ttl),
	)

	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("Mention再検証に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Mention再検証ワーカーを停止します")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("Mention再検証に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は検証からTTLを超過したMentionを一括で再検証する。
// 到達不能やタイムアウトは一時的障害とみなし検証済みのまま維持する。
func (r *Rechecker) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-r.ttl)
	mentions, err := r.store.ListVerifiedBefore(ctx, cutoff, r.batchSize)
	if err != nil {
		return err
	}
	if len(mentions) == 0 {
		return nil
	}

	r.logger.Info("Mention再検証を実行します", slog.Int("count", len(mentions)))

	snap := r.snaps.Snapshot()
	for _, mention := range mentions {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.recheck(ctx, snap, mention)
	}
	return nil
}

// recheck は単一Mentionを再検証し、結果に応じて状態を更新する。
func (r *Rechecker) recheck(ctx context.Context, snap *content.Snapshot, mention *model.Mention) {
	// 対象記事が削除されていれば即座に失効させる
	if _, ok := snap.Get(mention.TargetPath); !ok {
		r.revoke(ctx, mention, "記事が削除されています")
		return
	}

	targetURL := model.CanonicalURL(r.baseURL, mention.TargetPath)
	result := r.verifier.Verify(ctx, mention.SourceURL, targetURL)

	switch result {
	case VerifyOK:
		now := time.Now()
		mention.VerifiedAt = &now
		mention.UpdatedAt = now
		if err := r.store.Upsert(ctx, mention); err != nil {
			r.logger.Error("再検証結果の保存に失敗しました",
				slog.String("source", mention.SourceURL),
				slog.String("error", err.Error()),
			)
		}
	case VerifyNoBacklink, VerifyMalformed:
		r.revoke(ctx, mention, result.String())
	case VerifyUnreachable, VerifyTimeout:
		// 一時的障害では失効させず次回の再検証に委ねる
		r.logger.Info("ソースに到達できないため再検証を見送ります",
			slog.String("source", mention.SourceURL),
			slog.String("result", result.String()),
		)
	}
}

// revoke はMentionを失効状態へ移行させる。
func (r *Rechecker) revoke(ctx context.Context, mention *model.Mention, reason string) {
	if !mention.Status.CanTransitionTo(model.MentionStatusRevoked) {
		return
	}
	mention.Status = model.MentionStatusRevoked
	mention.UpdatedAt = time.Now()
	if err := r.store.Upsert(ctx, mention); err != nil {
		r.logger.Error("Mentionの失効処理に失敗しました",
			slog.String("source", mention.SourceURL),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Info("Mentionを失効させました",
		slog.String("target", mention.TargetPath),
		slog.String("source", mention.SourceURL),
		slog.String("reason", reason),
	)
}
