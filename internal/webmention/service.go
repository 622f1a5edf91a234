package webmention

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/blogman/internal/content"
	"github.com/hitoshi/blogman/internal/model"
)

// MentionStore はMentionレコードの永続化インターフェース。
type MentionStore interface {
	Upsert(ctx context.Context, mention *model.Mention) error
	FindByKey(ctx context.Context, targetPath, sourceURL string) (*model.Mention, error)
	ListVerifiedByTarget(ctx context.Context, targetPath string) ([]*model.Mention, error)
	ListVerifiedBefore(ctx context.Context, before time.Time, limit int) ([]*model.Mention, error)
}

// SnapshotSource は現在の記事スナップショットを提供するインターフェース。
type SnapshotSource interface {
	Snapshot() *content.Snapshot
}

// SourceVerifier はソースのフェッチとバックリンク検証のインターフェース。
type SourceVerifier interface {
	Verify(ctx context.Context, sourceURL, targetURL string) VerifyResult
}

// ReceiveRecorder は受信・検証のメトリクス記録インターフェース。
type ReceiveRecorder interface {
	RecordMentionReceived()
	RecordMentionVerify(result string, duration time.Duration)
}

// claim は検証待ちのWebmention受信。
type claim struct {
	targetPath string
	targetURL  string
	sourceURL  string
}

// Service はWebmention受信の検証パイプラインを管理する。
// 受信は同期的に妥当性検証と永続化を行い、ネットワークを伴う
// ソース検証はレート制限付きのワーカープールへ委譲する。
type Service struct {
	store    MentionStore
	snaps    SnapshotSource
	verifier SourceVerifier
	metrics  ReceiveRecorder
	logger   *slog.Logger
	baseHost string
	baseURL  string

	queue   chan claim
	limiter *rate.Limiter
	workers int
	wg      sync.WaitGroup
}

// ServiceConfig はServiceの動作パラメータ。
type ServiceConfig struct {
	BaseURL       string
	QueueSize     int
	MaxConcurrent int
	RatePerSec    float64
	Burst         int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store MentionStore, snaps SnapshotSource, verifier SourceVerifier, metrics ReceiveRecorder, logger *slog.Logger, cfg ServiceConfig) (*Service, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:    store,
		snaps:    snaps,
		verifier: verifier,
		metrics:  metrics,
		logger:   logger,
		baseHost: base.Host,
		baseURL:  cfg.BaseURL,
		queue:    make(chan claim, cfg.QueueSize),
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		workers:  cfg.MaxConcurrent,
	}, nil
}

// Start は検証ワーカーを起動する。ctxのキャンセルで全ワーカーが停止する。
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runWorker(ctx)
		}()
	}
}

// Wait は全ワーカーの終了を待つ。
func (s *Service) Wait() {
	s.wg.Wait()
}

// Receive はWebmention受信リクエストを処理する。ソースとターゲットの
// 構文検証、ターゲットの記事解決、受信レコードの永続化までを同期的に
// 行い、ネットワークを伴う検証はキューに積んで非同期で実行する。
func (s *Service) Receive(ctx context.Context, sourceURL, targetURL string) *model.APIError {
	source, err := url.Parse(sourceURL)
	if err != nil || (source.Scheme != "http" && source.Scheme != "https") || source.Host == "" {
		return model.NewInvalidSourceError("URLとして解釈できません")
	}

	targetPath, apiErr := s.resolveTargetPath(targetURL)
	if apiErr != nil {
		return apiErr
	}

	if sourceURL == targetURL {
		return model.NewInvalidSourceError("source と target が同一です")
	}

	s.metrics.RecordMentionReceived()

	mention := &model.Mention{
		ID:         uuid.New().String(),
		TargetPath: targetPath,
		SourceURL:  sourceURL,
		Status:     model.MentionStatusReceived,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	// 既存レコードがあればIDと作成日時を引き継ぎ、状態を受信に戻す
	existing, err := s.store.FindByKey(ctx, targetPath, sourceURL)
	if err != nil {
		s.logger.Error("Mentionレコードの検索に失敗しました",
			slog.String("target", targetPath),
			slog.String("source", sourceURL),
			slog.String("error", err.Error()),
		)
	} else if existing != nil {
		mention.ID = existing.ID
		mention.CreatedAt = existing.CreatedAt
	}

	if err := s.store.Upsert(ctx, mention); err != nil {
		s.logger.Error("Mentionレコードの保存に失敗しました",
			slog.String("target", targetPath),
			slog.String("source", sourceURL),
			slog.String("error", err.Error()),
		)
		return model.NewInternalError()
	}

	// バックリンク照合は受信者が再構成した正規URLに対して行う。
	// 末尾スラッシュなど表記ゆれのあるtargetでも正規URLへのリンクで検証が通る。
	select {
	case s.queue <- claim{targetPath: targetPath, targetURL: model.CanonicalURL(s.baseURL, targetPath), sourceURL: sourceURL}:
	default:
		s.logger.Warn("検証キューが満杯のため検証を見送ります",
			slog.String("target", targetPath),
			slog.String("source", sourceURL),
		)
	}

	return nil
}

// Mentioners は指定記事への検証済みMentionのソースURL一覧を返す。
func (s *Service) Mentioners(ctx context.Context, targetPath string) ([]string, error) {
	mentions, err := s.store.ListVerifiedByTarget(ctx, targetPath)
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(mentions))
	for _, m := range mentions {
		sources = append(sources, m.SourceURL)
	}
	return sources, nil
}

// resolveTargetPath はターゲットURLを検証し、対応する記事パスを返す。
// 自サイトのホストであり、スナップショット内に記事が存在しなければならない。
func (s *Service) resolveTargetPath(targetURL string) (string, *model.APIError) {
	target, err := url.Parse(targetURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return "", model.NewInvalidTargetError(targetURL)
	}
	if !strings.EqualFold(target.Host, s.baseHost) {
		return "", model.NewInvalidTargetError(targetURL)
	}

	path := strings.Trim(target.Path, "/")
	if path == "" {
		return "", model.NewInvalidTargetError(targetURL)
	}
	unescaped, err := url.PathUnescape(path)
	if err != nil {
		return "", model.NewInvalidTargetError(targetURL)
	}

	if _, ok := s.snaps.Snapshot().Get(unescaped); !ok {
		return "", model.NewInvalidTargetError(targetURL)
	}
	return unescaped, nil
}

// runWorker はキューからclaimを取り出して検証を実行するループ。
// グローバルなレートリミッタで検証フェッチの頻度を抑える。
func (s *Service) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			s.process(ctx, c)
		}
	}
}

// process は単一claimの検証を実行し、結果を永続化する。
func (s *Service) process(ctx context.Context, c claim) {
	mention, err := s.store.FindByKey(ctx, c.targetPath, c.sourceURL)
	if err != nil || mention == nil {
		s.logger.Error("検証対象のMentionレコードが見つかりません",
			slog.String("target", c.targetPath),
			slog.String("source", c.sourceURL),
		)
		return
	}
	if !mention.Status.CanTransitionTo(model.MentionStatusVerifying) {
		return
	}

	mention.Status = model.MentionStatusVerifying
	mention.UpdatedAt = time.Now()
	if err := s.store.Upsert(ctx, mention); err != nil {
		s.logger.Error("Mention状態の更新に失敗しました",
			slog.String("source", c.sourceURL),
			slog.String("error", err.Error()),
		)
		return
	}

	start := time.Now()
	result := s.verifier.Verify(ctx, c.sourceURL, c.targetURL)
	s.metrics.RecordMentionVerify(result.String(), time.Since(start))

	now := time.Now()
	if result == VerifyOK {
		mention.Status = model.MentionStatusVerified
		mention.RejectReason = ""
		mention.VerifiedAt = &now
	} else {
		mention.Status = model.MentionStatusRejected
		mention.RejectReason = result.RejectReason()
		mention.VerifiedAt = nil
	}
	mention.UpdatedAt = now

	if err := s.store.Upsert(ctx, mention); err != nil {
		s.logger.Error("検証結果の保存に失敗しました",
			slog.String("source", c.sourceURL),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("Webmentionの検証が完了しました",
		slog.String("target", c.targetPath),
		slog.String("source", c.sourceURL),
		slog.String("result", result.String()),
	)
}
