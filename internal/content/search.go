package content

import (
	"strings"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// SearchQuery は記事検索の条件を表す。
// 日付境界はすべて両端を含む。nilのフィールドは条件なしを意味する。
type SearchQuery struct {
	PathPrefix    string     // 検索対象のパスプレフィックス（空は全体）
	TitleFilter   string     // タイトルの部分一致（大文字小文字を区別しない）
	Tags          []string   // いずれか1つでも持てばマッチ（和集合/OR）
	CreatedSince  *time.Time
	CreatedBefore *time.Time
	UpdatedSince  *time.Time
	UpdatedBefore *time.Time
	SortType      model.SortType // 空の場合はDefaultSortType
}

// Validate は検索条件の妥当性を検証する。
// 未知のソート種別と逆転した日付範囲はエラーとして呼び出し側に返し、
// 黙って補正することはしない。
func (q *SearchQuery) Validate() *model.APIError {
	if q.SortType != "" && !q.SortType.IsValid() {
		return model.NewInvalidSortTypeError(string(q.SortType))
	}
	if q.CreatedSince != nil && q.CreatedBefore != nil && q.CreatedSince.After(*q.CreatedBefore) {
		return model.NewInvalidDateRangeError("created_since/created_before")
	}
	if q.UpdatedSince != nil && q.UpdatedBefore != nil && q.UpdatedSince.After(*q.UpdatedBefore) {
		return model.NewInvalidDateRangeError("updated_since/updated_before")
	}
	return nil
}

// Search はスナップショットに対して検索条件を評価し、ソート済みの
// 記事リストを返す。入力のみに依存する純粋関数であり、自由に並列実行できる。
//
// 評価順序: パスプレフィックス → タグ（OR） → 日付範囲（両端含む） →
// タイトルフィルタ → ソート。ページネーションは行わず、呼び出し側が
// 必要に応じて切り詰める。
func Search(snap *Snapshot, q SearchQuery) ([]*model.Article, *model.APIError) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	st := q.SortType
	if st == "" {
		st = model.DefaultSortType
	}

	prefix := strings.Trim(q.PathPrefix, "/")
	titleFilter := strings.ToLower(q.TitleFilter)

	var out []*model.Article
	// スナップショットの事前計算済み全順序を走査することで、
	// フィルタ結果が自動的にソート済みとなる。
	for _, path := range snap.OrderedBy(st) {
		a, ok := snap.Get(path)
		if !ok {
			continue
		}
		if !matchesPrefix(path, prefix) {
			continue
		}
		if len(q.Tags) > 0 && !matchesAnyTag(a, q.Tags) {
			continue
		}
		if !inRange(a.Created, q.CreatedSince, q.CreatedBefore) {
			continue
		}
		if !inRange(a.Updated, q.UpdatedSince, q.UpdatedBefore) {
			continue
		}
		if titleFilter != "" && !strings.Contains(strings.ToLower(a.Title), titleFilter) {
			continue
		}
		out = append(out, a)
	}

	return out, nil
}

// matchesPrefix はパスがプレフィックス配下にあるかをセグメント境界で判定する。
// "go" は "go/generics" にマッチするが "golang" にはマッチしない。
func matchesPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// matchesAnyTag は記事が指定タグのいずれかを持つかを返す（和集合セマンティクス）。
func matchesAnyTag(a *model.Article, tags []string) bool {
	for _, tag := range tags {
		if a.HasTag(tag) {
			return true
		}
	}
	return false
}

// inRange は日付が[since, before]の範囲内（両端含む）にあるかを返す。
func inRange(t time.Time, since, before *time.Time) bool {
	if since != nil && t.Before(*since) {
		return false
	}
	if before != nil && t.After(*before) {
		return false
	}
	return true
}
