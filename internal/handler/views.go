// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"net/http"
	"time"

	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
)

// --- レスポンス型 ---

// articleSummaryView は記事一覧のサマリーレスポンス。
type articleSummaryView struct {
	Path    string    `json:"path"`
	Title   string    `json:"title"`
	Blurb   string    `json:"blurb,omitempty"`
	Tags    []string  `json:"tags"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// searchResultView は検索結果のレスポンス。
type searchResultView struct {
	Articles []articleSummaryView `json:"articles"`
	Count    int                  `json:"count"`
}

// tagCountView はタグ1件の集計レスポンス。
type tagCountView struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// tagDirectoryView はタグディレクトリのレスポンス。
type tagDirectoryView struct {
	Tags []tagCountView `json:"tags"`
}

// articleView は記事詳細のレスポンス。本文HTMLと検証済みMentionの
// ソースURL一覧を含む。
type articleView struct {
	articleSummaryView
	Content    string   `json:"content"`
	Mentioners []string `json:"mentioners"`
}

// newArticleSummaryView はArticleからサマリービューを構築する。
func newArticleSummaryView(a *model.Article) articleSummaryView {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return articleSummaryView{
		Path:    a.Path,
		Title:   a.Title,
		Blurb:   a.Blurb,
		Tags:    tags,
		Created: a.Created,
		Updated: a.Updated,
	}
}

// newSearchResultView は検索結果からビューを構築する。
func newSearchResultView(articles []*model.Article) searchResultView {
	views := make([]articleSummaryView, 0, len(articles))
	for _, a := range articles {
		views = append(views, newArticleSummaryView(a))
	}
	return searchResultView{Articles: views, Count: len(views)}
}

// writeAPIError はAPIErrorのエラーコードに応じたHTTPステータスで
// 統一エラーレスポンスを書き込む。
func writeAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	status := http.StatusBadRequest
	switch apiErr.Code {
	case model.ErrCodeArticleNotFound:
		status = http.StatusNotFound
	case model.ErrCodeInternal:
		status = http.StatusInternalServerError
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}
