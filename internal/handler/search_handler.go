package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogman/internal/content"
	"github.com/hitoshi/blogman/internal/model"
)

// SnapshotSource は現在の記事スナップショットを提供するインターフェース。
type SnapshotSource interface {
	Snapshot() *content.Snapshot
}

// SearchRecorder は検索レイテンシの記録インターフェース。
type SearchRecorder interface {
	RecordSearch(duration time.Duration)
}

// SearchHandler は記事検索とタグ一覧のHTTPハンドラー。
type SearchHandler struct {
	snaps   SnapshotSource
	metrics SearchRecorder
}

// NewSearchHandler はSearchHandlerを生成する。metricsはnil可。
func NewSearchHandler(snaps SnapshotSource, metrics SearchRecorder) *SearchHandler {
	return &SearchHandler{snaps: snaps, metrics: metrics}
}

// Search は記事を多条件で検索する。
// GET /api/search/{prefix...}?title_filter&tags&created_since&created_before&updated_since&updated_before&sort_type
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	query, apiErr := parseSearchQuery(r)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	articles, apiErr := content.Search(h.snaps.Snapshot(), query)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSearch(time.Since(start))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newSearchResultView(articles))
}

// ListByTags は指定タグのいずれかを持つ記事を作成日の降順で返す。
// GET /api/tags/{prefix...}?tags=x,y
func (h *SearchHandler) ListByTags(w http.ResponseWriter, r *http.Request) {
	query := content.SearchQuery{
		PathPrefix: chi.URLParam(r, "*"),
		Tags:       splitTags(r.URL.Query().Get("tags")),
		SortType:   model.SortCreateDesc,
	}

	articles, apiErr := content.Search(h.snaps.Snapshot(), query)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newSearchResultView(articles))
}

// TagDirectory は全タグとそれぞれの記事数を返す。
// GET /api/tags
func (h *SearchHandler) TagDirectory(w http.ResponseWriter, r *http.Request) {
	counts := h.snaps.Snapshot().Tags()

	views := make([]tagCountView, 0, len(counts))
	for _, tc := range counts {
		views = append(views, tagCountView{Tag: tc.Tag, Count: tc.Count})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tagDirectoryView{Tags: views})
}

// parseSearchQuery はリクエストから検索条件を組み立てる。
// 日付はYYYY-MM-DD形式で解釈し、解析できない場合はエラーを返す。
func parseSearchQuery(r *http.Request) (content.SearchQuery, *model.APIError) {
	q := r.URL.Query()

	query := content.SearchQuery{
		PathPrefix:  chi.URLParam(r, "*"),
		TitleFilter: q.Get("title_filter"),
		Tags:        splitTags(q.Get("tags")),
		SortType:    model.SortType(q.Get("sort_type")),
	}

	for _, p := range []struct {
		name string
		dest **time.Time
	}{
		{"created_since", &query.CreatedSince},
		{"created_before", &query.CreatedBefore},
		{"updated_since", &query.UpdatedSince},
		{"updated_before", &query.UpdatedBefore},
	} {
		value := q.Get(p.name)
		if value == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			return content.SearchQuery{}, model.NewInvalidDateError(p.name, value)
		}
		*p.dest = &t
	}

	return query, nil
}

// splitTags はカンマ区切りのタグパラメータを分解する。空要素は捨てる。
func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
