package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/blogman/internal/model"
)

// MentionReceiver はWebmentionクレームの受理インターフェース。
type MentionReceiver interface {
	Receive(ctx context.Context, sourceURL, targetURL string) *model.APIError
}

// WebmentionHandler はWebmention受信エンドポイントのHTTPハンドラー。
type WebmentionHandler struct {
	receiver MentionReceiver
}

// NewWebmentionHandler はWebmentionHandlerを生成する。
func NewWebmentionHandler(receiver MentionReceiver) *WebmentionHandler {
	return &WebmentionHandler{receiver: receiver}
}

// Receive はWebmentionクレームを受理する。検証は非同期で行われるため、
// 受理できた時点で202 Acceptedを返す。
// POST /webmention (application/x-www-form-urlencoded: source, target)
func (h *WebmentionHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeAPIError(w, model.NewInvalidSourceError("フォームを解析できません"))
		return
	}

	source := r.PostFormValue("source")
	target := r.PostFormValue("target")
	if source == "" {
		writeAPIError(w, model.NewInvalidSourceError("source が指定されていません"))
		return
	}
	if target == "" {
		writeAPIError(w, model.NewInvalidTargetError("(未指定)"))
		return
	}

	if apiErr := h.receiver.Receive(r.Context(), source, target); apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
