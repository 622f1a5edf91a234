package webmention

import (
	"net/url"
	"strings"
	"testing"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("URLの解析に失敗しました: %v", err)
	}
	return u
}

func TestExtractLinks(t *testing.T) {
	base := mustParseURL(t, "https://source.example.com/posts/hello")

	html := `<html><body>
		<a href="https://blog.example.com/a/x">絶対リンク</a>
		<a href="/relative">相対リンク</a>
		<a href="https://blog.example.com/a/x">重複リンク</a>
		<a href="https://blog.example.com/b#section">フラグメント付き</a>
		<a href="mailto:someone@example.com">メール</a>
		<a href="javascript:alert(1)">スクリプト</a>
		<link href="https://other.example.com/style.css" rel="stylesheet">
	</body></html>`

	links, err := extractLinks(strings.NewReader(html), base)
	if err != nil {
		t.Fatalf("リンク抽出でエラーが発生しました: %v", err)
	}

	want := []string{
		"https://blog.example.com/a/x",
		"https://source.example.com/relative",
		"https://blog.example.com/b",
		"https://other.example.com/style.css",
	}
	if len(links) != len(want) {
		t.Fatalf("リンク数が一致しません: got=%v want=%v", links, want)
	}
	for i, w := range want {
		if links[i] != w {
			t.Errorf("リンク[%d]が一致しません: got=%s want=%s", i, links[i], w)
		}
	}
}

func TestExtractLinksMalformedHTML(t *testing.T) {
	base := mustParseURL(t, "https://source.example.com/")

	// html.Parseは壊れたHTMLにも寛容なので、抽出できるリンクは返す
	links, err := extractLinks(strings.NewReader(`<a href="https://x.example.com/p">壊れた<div>`), base)
	if err != nil {
		t.Fatalf("リンク抽出でエラーが発生しました: %v", err)
	}
	if len(links) != 1 || links[0] != "https://x.example.com/p" {
		t.Errorf("予期しない抽出結果です: %v", links)
	}
}

func TestEndpointFromHTML(t *testing.T) {
	base := mustParseURL(t, "https://target.example.com/articles/a")

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "link要素のrel属性",
			html: `<html><head><link rel="webmention" href="https://target.example.com/webmention"></head></html>`,
			want: "https://target.example.com/webmention",
		},
		{
			name: "a要素のrel属性",
			html: `<html><body><a rel="webmention" href="/wm">mention</a></body></html>`,
			want: "https://target.example.com/wm",
		},
		{
			name: "複数トークンのrel属性",
			html: `<link rel="nofollow webmention" href="https://target.example.com/wm">`,
			want: "https://target.example.com/wm",
		},
		{
			name: "空のhrefはページ自身を指す",
			html: `<link rel="webmention" href="">`,
			want: "https://target.example.com/articles/a",
		},
		{
			name: "宣言なし",
			html: `<html><body><a href="https://x.example.com/">link</a></body></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := endpointFromHTML(strings.NewReader(tt.html), base)
			if got != tt.want {
				t.Errorf("エンドポイントが一致しません: got=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestEndpointFromLinkHeader(t *testing.T) {
	base := mustParseURL(t, "https://target.example.com/articles/a")

	tests := []struct {
		name    string
		headers []string
		want    string
	}{
		{
			name:    "単一エントリ",
			headers: []string{`<https://target.example.com/webmention>; rel="webmention"`},
			want:    "https://target.example.com/webmention",
		},
		{
			name:    "カンマ区切りの複数エントリ",
			headers: []string{`<https://x.example.com/prev>; rel="prev", </wm>; rel="webmention"`},
			want:    "https://target.example.com/wm",
		},
		{
			name:    "引用符なしのrel",
			headers: []string{`</wm>; rel=webmention`},
			want:    "https://target.example.com/wm",
		},
		{
			name:    "webmention宣言なし",
			headers: []string{`<https://x.example.com/next>; rel="next"`},
			want:    "",
		},
		{
			name:    "ヘッダなし",
			headers: nil,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := endpointFromLinkHeader(tt.headers, base)
			if got != tt.want {
				t.Errorf("エンドポイントが一致しません: got=%q want=%q", got, tt.want)
			}
		})
	}
}
