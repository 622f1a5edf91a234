package content

import (
	"testing"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func paths(articles []*model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Path
	}
	return out
}

func assertPaths(t *testing.T, got []*model.Article, want ...string) {
	t.Helper()
	gotPaths := paths(got)
	if len(gotPaths) != len(want) {
		t.Fatalf("結果 = %v, want %v", gotPaths, want)
	}
	for i := range want {
		if gotPaths[i] != want[i] {
			t.Fatalf("結果 = %v, want %v", gotPaths, want)
		}
	}
}

// スペックの具体シナリオ: search(tags={x}, sortType=CreateAsc) → [A, C]
func TestSearch_TagFilterWithCreateAsc(t *testing.T) {
	snap := NewSnapshot(1, testCorpus())

	got, apiErr := Search(snap, SearchQuery{
		Tags:     []string{"x"},
		SortType: model.SortCreateAsc,
	})
	if apiErr != nil {
		t.Fatalf("Search がエラーを返した: %v", apiErr)
	}
	assertPaths(t, got, "a", "c")
}

// スペックの具体シナリオ: search(createdSince=2023-03-01) → [B, C]（デフォルトソート）
func TestSearch_CreatedSinceWithDefaultSort(t *testing.T) {
	snap := NewSnapshot(1, testCorpus())

	got, apiErr := Search(snap, SearchQuery{
		CreatedSince: datePtr("2023-03-01"),
	})
	if apiErr != nil {
		t.Fatalf("Search がエラーを返した: %v", apiErr)
	}
	// デフォルトは create_desc
	assertPaths(t, got, "c", "b")
}

func TestSearch_DateBoundsAreInclusive(t *testing.T) {
	snap := NewSnapshot(1, testCorpus())

	// createdSince == A.created の場合、Aは含まれる（境界は両端含む）
	got, apiErr := Search(snap, SearchQuery{
		CreatedSince:  datePtr("2023-01-01"),
		CreatedBefore: datePtr("2023-01-01"),
		SortType:      model.SortCreateAsc,
	})
	if apiErr != nil {
		t.Fatalf("Search がエラーを返した: %v", apiErr)
	}
	assertPaths(t, got, "a")
}

func TestSearch_TagsAreUnionNotIntersection(t *testing.T) {
	snap := NewSnapshot(1, testCorpus())

	// {x, y} のいずれかを持つ記事すべて → 3件（積集合なら C のみになってしまう）
	got, apiErr := Search(snap, SearchQuery{
		Tags:     []string{"x", "y"},
		SortType: model.SortCreateAsc,
	})
	if apiErr != nil {
		t.Fatalf("Search がエラーを返した: %v", apiErr)
	}
	assertPaths(t, got, "a", "b", "c")
}

func TestSearch_TitleFilterIsCaseInsensitive(t *testing.T) {
	snap := NewSnapshot(1, testCorpus())

	got, apiErr := Search(snap, SearchQuery{TitleFilter: "ALPHA"})
	if apiErr != nil {
		t.Fatalf("Search がエラーを返した: %v", apiErr)
	}
	assertPaths(t, got, "a")
}

func TestSearch_PathPrefixMatchesSegmentBoundary(t *testing.T) {
	articles := []*model.Article{
		{Path: "go/generics", Title: "One", Created: date("2023-01-01"), Updated: date("2023-01-01")},
		{Path: "golang", Title: "Two", Created: date("2023-01-02"), Updated: date("2023-01-02")},
		{Path: "go", Title: "Three", Created: date("2023-01-03"), Updated: date("2023-01-03")},
	}
	snap := NewSnapshot(1, articles)

	got, apiErr := Search(snap, SearchQuery{PathPrefix: "go", SortType: model.SortCreateAsc})
	if apiErr != nil {
		t.Fatalf("Search がエラーを返した: %v", apiErr)
	}
	// "golang" はプレフィックス "go" にマッチしない
	assertPaths(t, got, "go/generics", "go")
}

func TestSearch_UnknownSortTypeIsValidationError(t *testing.T) {
	snap := NewSnapshot(1, testCorpus())

	_, apiErr := Search(snap, SearchQuery{SortType: "newest_first"})
	if apiErr == nil {
		t.Fatal("未知のソート種別は検証エラーになるべき")
	}
	if apiErr.Code != model.ErrCodeInvalidSortType {
		t.Errorf("Code = %s, want %s", apiErr.Code, model.ErrCodeInvalidSortType)
	}
}

func TestSearch_InvertedDateRangeIsValidationError(t *testing.T) {
	snap := NewSnapshot(1, testCorpus())

	_, apiErr := Search(snap, SearchQuery{
		CreatedSince:  datePtr("2024-01-01"),
		CreatedBefore: datePtr("2023-01-01"),
	})
	if apiErr == nil {
		t.Fatal("逆転した日付範囲は検証エラーになるべき（黙って補正しない）")
	}
	if apiErr.Code != model.ErrCodeInvalidDateRange {
		t.Errorf("Code = %s, want %s", apiErr.Code, model.ErrCodeInvalidDateRange)
	}
}

func TestSearch_VaryingSortTypeYieldsSameSet(t *testing.T) {
	snap := NewSnapshot(1, testCorpus())
	q := SearchQuery{Tags: []string{"x", "y"}, CreatedSince: datePtr("2023-01-01")}

	var first map[string]struct{}
	for _, st := range []model.SortType{
		model.SortCreateAsc, model.SortCreateDesc,
		model.SortUpdateAsc, model.SortUpdateDesc,
		model.SortNameAsc, model.SortNameDesc,
	} {
		q.SortType = st
		got, apiErr := Search(snap, q)
		if apiErr != nil {
			t.Fatalf("%s: Search がエラーを返した: %v", st, apiErr)
		}
		set := map[string]struct{}{}
		for _, a := range got {
			set[a.Path] = struct{}{}
		}
		if first == nil {
			first = set
			continue
		}
		if len(set) != len(first) {
			t.Errorf("%s: ソート種別によって結果集合が変わってはならない", st)
		}
		for p := range first {
			if _, ok := set[p]; !ok {
				t.Errorf("%s: 結果集合に %s が欠けている", st, p)
			}
		}
	}
}

func TestSearch_EmptyQueryReturnsAllVisible(t *testing.T) {
	snap := NewSnapshot(1, testCorpus())

	got, apiErr := Search(snap, SearchQuery{})
	if apiErr != nil {
		t.Fatalf("Search がエラーを返した: %v", apiErr)
	}
	if len(got) != 3 {
		t.Errorf("空クエリは全記事を返すべき, got %d件", len(got))
	}
}
