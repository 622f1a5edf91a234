package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// retryBaseDelay はリトライの初期待機時間。
const retryBaseDelay = 100 * time.Millisecond

// RetryingMentionRepo はMentionRepositoryの書き込みを一時的障害に対して
// リトライするラッパー。読み取りはそのまま委譲する。
type RetryingMentionRepo struct {
	inner      MentionRepository
	logger     *slog.Logger
	maxRetries int

	// sleep はテストで差し替えるためのフック
	sleep func(time.Duration)
}

// NewRetryingMentionRepo はRetryingMentionRepoを生成する。
func NewRetryingMentionRepo(inner MentionRepository, logger *slog.Logger, maxRetries int) *RetryingMentionRepo {
	return &RetryingMentionRepo{
		inner:      inner,
		logger:     logger,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}
}

// Upsert は書き込みを指数バックオフ付きでリトライする。
func (r *RetryingMentionRepo) Upsert(ctx context.Context, mention *model.Mention) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.sleep(retryBaseDelay << (attempt - 1))
		}

		lastErr = r.inner.Upsert(ctx, mention)
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("リトライでMentionの保存に成功しました",
					slog.Int("attempt", attempt+1),
				)
			}
			return nil
		}

		r.logger.Warn("Mentionの保存に失敗しました",
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()),
		)
	}
	return lastErr
}

// FindByKey は内側のリポジトリへ委譲する。
func (r *RetryingMentionRepo) FindByKey(ctx context.Context, targetPath, sourceURL string) (*model.Mention, error) {
	return r.inner.FindByKey(ctx, targetPath, sourceURL)
}

// ListVerifiedByTarget は内側のリポジトリへ委譲する。
func (r *RetryingMentionRepo) ListVerifiedByTarget(ctx context.Context, targetPath string) ([]*model.Mention, error) {
	return r.inner.ListVerifiedByTarget(ctx, targetPath)
}

// ListVerifiedBefore は内側のリポジトリへ委譲する。
func (r *RetryingMentionRepo) ListVerifiedBefore(ctx context.Context, before time.Time, limit int) ([]*model.Mention, error) {
	return r.inner.ListVerifiedBefore(ctx, before, limit)
}

// compile-time interface check
var _ MentionRepository = (*RetryingMentionRepo)(nil)
