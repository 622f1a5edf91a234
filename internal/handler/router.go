package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
)

// HealthChecker はデータベース到達性の確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	// コンテンツ
	Snapshots SnapshotSource
	Reloader  ReloadTrigger

	// メトリクス（nil可）
	SearchRecorder SearchRecorder

	// フィード
	FeedBuilder  FeedBuilder
	FeedRecorder FeedRecorder
	FeedLimit    int
	FeedSort     model.SortType

	// Webmention
	MentionReceiver MentionReceiver
	Mentioners      MentionersProvider

	// 運用
	Health         HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → RateLimit(General)
//
// Webmention受信には受信専用のレート制限を追加で適用する。
// /healthz と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	searchHandler := NewSearchHandler(deps.Snapshots, deps.SearchRecorder)
	articleHandler := NewArticleHandler(deps.Snapshots, deps.Mentioners, deps.Logger)
	feedHandler := NewFeedHandler(deps.FeedBuilder, deps.Snapshots, deps.FeedRecorder, deps.FeedLimit, deps.FeedSort)
	mentionHandler := NewWebmentionHandler(deps.MentionReceiver)
	refreshHandler := NewRefreshHandler(deps.Reloader)

	// --- 運用ルート（レート制限なし） ---

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.Health.PingContext(req.Context()); err != nil {
			deps.Logger.Error("ヘルスチェックに失敗しました", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
				Code:     "UNHEALTHY",
				Message:  "データベースに接続できません。",
				Category: "system",
				Action:   "しばらく待ってから再度お試しください。",
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 公開APIルート ---

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/search", searchHandler.Search)
		r.Get("/api/search/*", searchHandler.Search)

		r.Get("/api/tags", searchHandler.TagDirectory)
		r.Get("/api/tags/*", searchHandler.ListByTags)

		r.Get("/api/articles/*", articleHandler.Get)

		r.Get("/feed.xml", feedHandler.Serve)

		r.Post("/api/refresh", refreshHandler.Refresh)

		// Webmention受信は受信専用のレート制限を重ねる
		r.With(deps.RateLimiter.WebmentionMiddleware()).Post("/webmention", mentionHandler.Receive)
	})

	return r
}
