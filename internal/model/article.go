// Package model はドメインモデルを定義する。
package model

import (
	"net/url"
	"strings"
	"time"
)

// Article はレンダリング済みの記事を表す。
// 構築後は不変として扱い、ファイルが変更された場合は
// フィールドの書き換えではなく新しいArticle値を作る。
type Article struct {
	Path            string // コンテンツディレクトリからの相対パス（拡張子なし、一意）
	Title           string
	Blurb           string
	Tags            []string // 重複なし、昇順ソート済み
	Created         time.Time
	Updated         time.Time // Created以降であることが保証される
	Content         string    // 変換器が生成したHTML（不透明なブロブとして扱う）
	Hidden          bool      // 一覧・検索・フィードから除外（直接取得は可能）
	ExcludeFromFeed bool      // RSSフィードからのみ除外
}

// HasTag は記事が指定タグを持つかを返す。
func (a *Article) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CanonicalURL はベースURLと記事パスから正規の記事URLを生成する。
// パスセグメントはエスケープされる（スペースは%20になる）。
func CanonicalURL(baseURL, path string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + "/" + path
	}
	return base.JoinPath(strings.Split(path, "/")...).String()
}

// SortType は検索結果の並び順を表す。
type SortType string

const (
	// SortCreateAsc は作成日の昇順。
	SortCreateAsc SortType = "create_asc"
	// SortCreateDesc は作成日の降順。
	SortCreateDesc SortType = "create_desc"
	// SortUpdateAsc は更新日の昇順。
	SortUpdateAsc SortType = "update_asc"
	// SortUpdateDesc は更新日の降順。
	SortUpdateDesc SortType = "update_desc"
	// SortNameAsc はタイトルの昇順。
	SortNameAsc SortType = "name_asc"
	// SortNameDesc はタイトルの降順。
	SortNameDesc SortType = "name_desc"
)

// DefaultSortType は並び順未指定時のデフォルト（作成日の降順）。
const DefaultSortType = SortCreateDesc

// IsValid はSortTypeが定義済みの値かを返す。
func (s SortType) IsValid() bool {
	switch s {
	case SortCreateAsc, SortCreateDesc, SortUpdateAsc, SortUpdateDesc, SortNameAsc, SortNameDesc:
		return true
	}
	return false
}
