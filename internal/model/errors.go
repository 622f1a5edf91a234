// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, content, webmention, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidSortType  = "INVALID_SORT_TYPE"
	ErrCodeInvalidDateRange = "INVALID_DATE_RANGE"
	ErrCodeInvalidDate      = "INVALID_DATE"
	ErrCodeArticleNotFound  = "ARTICLE_NOT_FOUND"
	ErrCodeInvalidTarget    = "INVALID_TARGET"
	ErrCodeInvalidSource    = "INVALID_SOURCE"
	ErrCodeInternal         = "INTERNAL_SERVER_ERROR"
)

// NewInvalidSortTypeError は未知のソート種別エラーを生成する。
func NewInvalidSortTypeError(sortType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSortType,
		Message:  fmt.Sprintf("無効なソート種別です: %s", sortType),
		Category: "validation",
		Action:   "sort_type には create_asc、create_desc、update_asc、update_desc、name_asc、name_desc のいずれかを指定してください。",
	}
}

// NewInvalidDateRangeError は開始日が終了日より後の日付範囲エラーを生成する。
func NewInvalidDateRangeError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDateRange,
		Message:  fmt.Sprintf("日付範囲が逆転しています: %s", field),
		Category: "validation",
		Action:   "since には before 以前の日付を指定してください。",
	}
}

// NewInvalidDateError は解析できない日付パラメータのエラーを生成する。
func NewInvalidDateError(param, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("日付パラメータ %s を解析できません: %s", param, value),
		Category: "validation",
		Action:   "日付は YYYY-MM-DD 形式で指定してください。",
	}
}

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(path string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", path),
		Category: "content",
		Action:   "記事のパスを確認してください。",
	}
}

// NewInvalidTargetError はWebmentionのターゲットが既知の記事に
// 解決できない場合のエラーを生成する。
func NewInvalidTargetError(target string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTarget,
		Message:  fmt.Sprintf("target がこのサイトの記事に解決できません: %s", target),
		Category: "webmention",
		Action:   "target には存在する記事のURLを指定してください。",
	}
}

// NewInternalError はサーバー内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "サーバー内部でエラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidSourceError はWebmentionのソースURLが不正な場合のエラーを生成する。
func NewInvalidSourceError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSource,
		Message:  fmt.Sprintf("source が無効です: %s", reason),
		Category: "webmention",
		Action:   "source には http:// または https:// で始まる、target と異なるURLを指定してください。",
	}
}
