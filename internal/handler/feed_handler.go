package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/hitoshi/blogman/internal/content"
	"github.com/hitoshi/blogman/internal/model"
)

// FeedBuilder はRSSフィードの生成インターフェース。
type FeedBuilder interface {
	Build(snap *content.Snapshot, q content.SearchQuery, limit int) ([]byte, *model.APIError)
}

// FeedRecorder はフィードリクエストのメトリクス記録インターフェース。
type FeedRecorder interface {
	RecordFeedRequest(cacheHit bool)
}

// FeedHandler はRSSフィード配信のHTTPハンドラー。
// フィードは同一スナップショットに対して決定的であるため、
// 内容のハッシュをETagとして条件付きGETに応答する。
type FeedHandler struct {
	builder      FeedBuilder
	snaps        SnapshotSource
	metrics      FeedRecorder
	defaultLimit int
	defaultSort  model.SortType
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(builder FeedBuilder, snaps SnapshotSource, metrics FeedRecorder, defaultLimit int, defaultSort model.SortType) *FeedHandler {
	return &FeedHandler{
		builder:      builder,
		snaps:        snaps,
		metrics:      metrics,
		defaultLimit: defaultLimit,
		defaultSort:  defaultSort,
	}
}

// Serve はRSSフィードを返す。
// GET /feed.xml?prefix&sort&limit
func (h *FeedHandler) Serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := h.defaultLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeAPIError(w, &model.APIError{
				Code:     "INVALID_LIMIT",
				Message:  "limit は正の整数で指定してください: " + raw,
				Category: "validation",
				Action:   "limit には1以上の整数を指定してください。",
			})
			return
		}
		limit = n
	}

	sort := h.defaultSort
	if raw := q.Get("sort"); raw != "" {
		sort = model.SortType(raw)
	}

	query := content.SearchQuery{
		PathPrefix: q.Get("prefix"),
		SortType:   sort,
	}

	body, apiErr := h.builder.Build(h.snaps.Snapshot(), query, limit)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")

	if r.Header.Get("If-None-Match") == etag {
		h.metrics.RecordFeedRequest(true)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.metrics.RecordFeedRequest(false)
	w.Write(body)
}
