package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/blogman/internal/model"
)

func TestWriteErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, http.StatusBadRequest, model.NewInvalidSortTypeError("oldest"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("ステータスコードが一致しません: got=%d want=400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Typeが一致しません: got=%s", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	if body.Code != model.ErrCodeInvalidSortType {
		t.Errorf("エラーコードが一致しません: got=%s", body.Code)
	}
	if body.Category != "validation" {
		t.Errorf("カテゴリが一致しません: got=%s", body.Category)
	}
	if body.Message == "" || body.Action == "" {
		t.Error("メッセージと対処方法は空であってはなりません")
	}
}

func TestWriteInternalServerError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInternalServerError(rec)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("ステータスコードが一致しません: got=%d want=500", rec.Code)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	if body.Code != model.ErrCodeInternal {
		t.Errorf("エラーコードが一致しません: got=%s", body.Code)
	}
}
