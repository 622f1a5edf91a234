// Package webmention はWebmentionの受信・検証・送信を提供する。
//
// 受信フロー: クレーム {source, target} を受理し、targetが既知の記事で
// あることを確認した上でキューに積み、ワーカープールがsourceをフェッチして
// バックリンクの存在を検証する。
// 送信フロー: スナップショットの再読み込みで変化した記事の外部リンクに
// 対してエンドポイントを発見し、通知をPOSTする。
package webmention

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// extractLinks はHTMLからa要素とlink要素のhrefを抽出し、baseで解決した
// 絶対URL（http/httpsのみ）を出現順・重複なしで返す。
func extractLinks(r io.Reader, base *url.URL) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]struct{})

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "a" || n.Data == "link") {
			if href, ok := attrValue(n, "href"); ok {
				if resolved := resolveHref(base, href); resolved != "" {
					if _, dup := seen[resolved]; !dup {
						seen[resolved] = struct{}{}
						out = append(out, resolved)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return out, nil
}

// endpointFromHTML はHTML内のrel="webmention"を持つlink/a要素から
// エンドポイントURLを発見する。最初に見つかったものを返し、
// 見つからない場合は空文字を返す。
// 空のhref属性はWebmention仕様に従いベースURL自身に解決される。
func endpointFromHTML(r io.Reader, base *url.URL) string {
	doc, err := html.Parse(r)
	if err != nil {
		return ""
	}

	var found string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "link" || n.Data == "a") {
			if rel, ok := attrValue(n, "rel"); ok && relContains(rel, "webmention") {
				if href, ok := attrValue(n, "href"); ok {
					if href == "" {
						found = base.String()
					} else if resolved := resolveHref(base, href); resolved != "" {
						found = resolved
					}
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return found
}

// endpointFromLinkHeader はHTTP Linkヘッダーからrel="webmention"の
// エンドポイントURLを発見する。見つからない場合は空文字を返す。
func endpointFromLinkHeader(headers []string, base *url.URL) string {
	for _, header := range headers {
		for _, entry := range strings.Split(header, ",") {
			target, rel := parseLinkEntry(entry)
			if target == "" || !relContains(rel, "webmention") {
				continue
			}
			if resolved := resolveHref(base, target); resolved != "" {
				return resolved
			}
		}
	}
	return ""
}

// parseLinkEntry は `<url>; rel="webmention"` 形式のLinkヘッダー
// エントリ1件からURL部とrel部を取り出す。
func parseLinkEntry(entry string) (target, rel string) {
	parts := strings.Split(entry, ";")
	if len(parts) == 0 {
		return "", ""
	}

	urlPart := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(urlPart, "<") || !strings.HasSuffix(urlPart, ">") {
		return "", ""
	}
	target = strings.TrimSuffix(strings.TrimPrefix(urlPart, "<"), ">")

	for _, param := range parts[1:] {
		param = strings.TrimSpace(param)
		if value, ok := strings.CutPrefix(param, "rel="); ok {
			rel = strings.Trim(value, `"`)
		}
	}
	return target, rel
}

// relContains はスペース区切りのrel属性値がトークンを含むかを返す。
func relContains(rel, token string) bool {
	for _, r := range strings.Fields(rel) {
		if strings.EqualFold(r, token) {
			return true
		}
	}
	return false
}

// attrValue は要素の属性値を取得する。
func attrValue(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val, true
		}
	}
	return "", false
}

// resolveHref はhrefをベースURLに対して解決し、http/https以外は捨てる。
func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	// フラグメントはリンク同一性の比較に含めない
	resolved.Fragment = ""
	return resolved.String()
}
