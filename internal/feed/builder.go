// Package feed は記事スナップショットからのRSSフィード生成を提供する。
package feed

import (
	"fmt"

	"github.com/gorilla/feeds"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/blogman/internal/content"
	"github.com/hitoshi/blogman/internal/model"
)

// Builder はスナップショットと検索条件から決定的なRSSドキュメントを構築する。
//
// 決定性の要件: 同一のスナップショット・クエリ・件数上限に対して常に
// バイト単位で同一の出力を生成する。これによりレンダリング側での
// キャッシュや条件付きGETが可能になる。出力に現在時刻を含めてはならない。
type Builder struct {
	baseURL   string
	siteTitle string
	siteBlurb string
	policy    *bluemonday.Policy
}

// NewBuilder はBuilderの新しいインスタンスを生成する。
func NewBuilder(baseURL, siteTitle, siteBlurb string) *Builder {
	return &Builder{
		baseURL:   baseURL,
		siteTitle: siteTitle,
		siteBlurb: siteBlurb,
		// 概要文はテキストのみに落とす
		policy: bluemonday.StrictPolicy(),
	}
}

// Build は検索を実行し、最新limit件のRSSドキュメントを生成する。
// ソート種別はフィードに適した新しい順（create_desc / update_desc）に
// 強制され、それ以外が指定された場合はcreate_descを使用する。
// exclude_from_rss指定の記事は除外される。
func (b *Builder) Build(snap *content.Snapshot, q content.SearchQuery, limit int) ([]byte, *model.APIError) {
	if q.SortType != model.SortCreateDesc && q.SortType != model.SortUpdateDesc {
		q.SortType = model.SortCreateDesc
	}

	articles, apiErr := content.Search(snap, q)
	if apiErr != nil {
		return nil, apiErr
	}

	f := &feeds.Feed{
		Title:       b.siteTitle,
		Link:        &feeds.Link{Href: b.baseURL},
		Description: b.siteBlurb,
	}

	for _, a := range articles {
		if a.ExcludeFromFeed {
			continue
		}
		if limit > 0 && len(f.Items) >= limit {
			break
		}
		link := model.CanonicalURL(b.baseURL, a.Path)
		f.Items = append(f.Items, &feeds.Item{
			Id:          link,
			Title:       a.Title,
			Link:        &feeds.Link{Href: link},
			Description: b.policy.Sanitize(a.Blurb),
			Created:     a.Created,
			Updated:     a.Updated,
		})
	}

	// LastBuildDateを決定的にするため、フィード日時は先頭（最新）記事から取る
	if len(f.Items) > 0 {
		f.Created = f.Items[0].Created
		f.Updated = f.Items[0].Updated
	}

	rss, err := f.ToRss()
	if err != nil {
		return nil, &model.APIError{
			Code:     "FEED_BUILD_FAILED",
			Message:  fmt.Sprintf("フィードの生成に失敗しました: %s", err),
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}

	return []byte(rss), nil
}
