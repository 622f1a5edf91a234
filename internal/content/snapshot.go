// Package content はMarkdownコーパスの読み込み、スナップショット索引、
// 検索機能を提供する。
package content

import (
	"sort"

	"github.com/hitoshi/blogman/internal/model"
)

// Snapshot はコーパス全体の不変な1世代を表す。
// パス→記事のマップ、タグ→パス集合のマップ、および6種類の全順序を保持する。
// 構築後は一切変更されず、全コンシューマから読み取り専用で共有される。
// 新しい世代に置き換えられた後も、参照を保持しているリーダーが
// 終了するまで値は有効であり続ける。
type Snapshot struct {
	generation uint64
	byPath     map[string]*model.Article
	byTag      map[string][]string            // 非hidden記事のみ。各スライスはパス昇順
	orders     map[model.SortType][]string    // 非hidden記事のみ。ソート種別ごとの全順序
}

// TagCount はタグとそのタグを持つ記事数の組。
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// NewSnapshot は記事のリストからスナップショットを構築する。
// hidden記事はbyPathには含まれるが、タグ索引と順序には含まれない。
func NewSnapshot(generation uint64, articles []*model.Article) *Snapshot {
	s := &Snapshot{
		generation: generation,
		byPath:     make(map[string]*model.Article, len(articles)),
		byTag:      make(map[string][]string),
		orders:     make(map[model.SortType][]string, 6),
	}

	visible := make([]string, 0, len(articles))
	for _, a := range articles {
		s.byPath[a.Path] = a
		if a.Hidden {
			continue
		}
		visible = append(visible, a.Path)
		for _, tag := range a.Tags {
			s.byTag[tag] = append(s.byTag[tag], a.Path)
		}
	}

	for _, paths := range s.byTag {
		sort.Strings(paths)
	}

	for _, st := range []model.SortType{
		model.SortCreateAsc, model.SortCreateDesc,
		model.SortUpdateAsc, model.SortUpdateDesc,
		model.SortNameAsc, model.SortNameDesc,
	} {
		order := make([]string, len(visible))
		copy(order, visible)
		less := s.lessFunc(st)
		sort.Slice(order, func(i, j int) bool { return less(order[i], order[j]) })
		s.orders[st] = order
	}

	return s
}

// lessFunc はソート種別に対応する比較関数を返す。
// 全種別でパスの辞書順昇順をタイブレークとして使用し、決定的な全順序を保証する。
func (s *Snapshot) lessFunc(st model.SortType) func(a, b string) bool {
	return func(pa, pb string) bool {
		a, b := s.byPath[pa], s.byPath[pb]
		switch st {
		case model.SortCreateAsc:
			if !a.Created.Equal(b.Created) {
				return a.Created.Before(b.Created)
			}
		case model.SortCreateDesc:
			if !a.Created.Equal(b.Created) {
				return a.Created.After(b.Created)
			}
		case model.SortUpdateAsc:
			if !a.Updated.Equal(b.Updated) {
				return a.Updated.Before(b.Updated)
			}
		case model.SortUpdateDesc:
			if !a.Updated.Equal(b.Updated) {
				return a.Updated.After(b.Updated)
			}
		case model.SortNameAsc:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case model.SortNameDesc:
			if a.Title != b.Title {
				return a.Title > b.Title
			}
		}
		return pa < pb
	}
}

// Generation はスナップショットの世代番号を返す。
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Len は読み込まれた記事の総数（hidden含む）を返す。
func (s *Snapshot) Len() int {
	return len(s.byPath)
}

// Get はパスで記事を取得する。hidden記事も直接取得は可能。
func (s *Snapshot) Get(path string) (*model.Article, bool) {
	a, ok := s.byPath[path]
	return a, ok
}

// ByTag は指定タグを持つ非hidden記事のパスをパス昇順で返す。
// 返り値は内部スライスであり、呼び出し側は変更してはならない。
func (s *Snapshot) ByTag(tag string) []string {
	return s.byTag[tag]
}

// OrderedBy は指定ソート種別による非hidden記事の全順序を返す。
// 返り値は内部スライスであり、呼び出し側は変更してはならない。
func (s *Snapshot) OrderedBy(st model.SortType) []string {
	return s.orders[st]
}

// Paths は読み込まれた全記事（hidden含む）のパスを昇順で返す。
// スナップショット間の差分計算に使用する。
func (s *Snapshot) Paths() []string {
	out := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Tags は全タグとその記事数をタグ名の昇順で返す。
func (s *Snapshot) Tags() []TagCount {
	out := make([]TagCount, 0, len(s.byTag))
	for tag, paths := range s.byTag {
		out = append(out, TagCount{Tag: tag, Count: len(paths)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}
