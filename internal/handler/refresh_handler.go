package handler

import (
	"encoding/json"
	"net/http"
)

// ReloadTrigger は記事インデックスの再読み込み要求インターフェース。
type ReloadTrigger interface {
	Trigger()
}

// RefreshHandler はインデックスの強制再読み込みのHTTPハンドラー。
type RefreshHandler struct {
	reloader ReloadTrigger
}

// NewRefreshHandler はRefreshHandlerを生成する。
func NewRefreshHandler(reloader ReloadTrigger) *RefreshHandler {
	return &RefreshHandler{reloader: reloader}
}

// Refresh は再読み込みをスケジュールする。実行は非同期であり、
// 完了を待たずに202 Acceptedを返す。
// POST /api/refresh
func (h *RefreshHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.reloader.Trigger()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "scheduled"})
}
