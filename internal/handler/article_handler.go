package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogman/internal/model"
)

// MentionersProvider は記事への検証済みMention一覧を提供するインターフェース。
type MentionersProvider interface {
	Mentioners(ctx context.Context, targetPath string) ([]string, error)
}

// ArticleHandler は記事詳細のHTTPハンドラー。
type ArticleHandler struct {
	snaps      SnapshotSource
	mentioners MentionersProvider
	logger     *slog.Logger
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(snaps SnapshotSource, mentioners MentionersProvider, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{
		snaps:      snaps,
		mentioners: mentioners,
		logger:     logger,
	}
}

// Get は記事詳細を取得する。非表示の記事も直接指定なら取得できる。
// GET /api/articles/{path...}
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")

	article, ok := h.snaps.Snapshot().Get(path)
	if !ok {
		writeAPIError(w, model.NewArticleNotFoundError(path))
		return
	}

	// Mention取得の失敗で記事本体の提供を止めない
	sources, err := h.mentioners.Mentioners(r.Context(), path)
	if err != nil {
		h.logger.Warn("Mention一覧の取得に失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		sources = nil
	}
	if sources == nil {
		sources = []string{}
	}

	view := articleView{
		articleSummaryView: newArticleSummaryView(article),
		Content:            article.Content,
		Mentioners:         sources,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(view)
}
