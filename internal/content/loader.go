package content

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hitoshi/blogman/internal/model"
)

// Converter はMarkdown→HTML変換の純粋関数インターフェース。
// 記事1件につき読み込み時に1回だけ呼ばれる。
type Converter interface {
	Convert(markdown []byte) (string, error)
}

// GoldmarkConverter はgoldmarkエンジンによるConverter実装。
// ステートレスであり、単一インスタンスをロックなしで再利用できる。
type GoldmarkConverter struct {
	md goldmark.Markdown
}

// NewGoldmarkConverter はGFM拡張と見出し自動ID付きのコンバータを生成する。
// 自サイトの原稿を変換するため、raw HTMLの通過を許可する。
func NewGoldmarkConverter() *GoldmarkConverter {
	return &GoldmarkConverter{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

// Convert はMarkdownをHTMLに変換する。
func (c *GoldmarkConverter) Convert(markdown []byte) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert(markdown, &buf); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	return buf.String(), nil
}

// ParseRecorder は記事パース失敗のメトリクス記録インターフェース。
type ParseRecorder interface {
	RecordParseFailure()
}

// Loader はコンテンツディレクトリを走査して記事スナップショットを構築する。
// 壊れたファイルは警告ログを出してスキップし、残りの読み込みは継続する。
type Loader struct {
	dir     string
	conv    Converter
	logger  *slog.Logger
	metrics ParseRecorder
}

// NewLoader はLoaderの新しいインスタンスを生成する。metricsはnilでもよい。
func NewLoader(dir string, conv Converter, logger *slog.Logger, metrics ParseRecorder) *Loader {
	return &Loader{
		dir:     dir,
		conv:    conv,
		logger:  logger,
		metrics: metrics,
	}
}

// Load はディレクトリ全体を走査して新しいスナップショットを構築する。
// 毎回完全な再構築であり、インクリメンタルなパッチは行わない。
// ディレクトリ自体が読めない場合のみエラーを返す。個別ファイルの失敗は
// 警告ログを出してスキップする。
func (l *Loader) Load(ctx context.Context, generation uint64) (*Snapshot, error) {
	if _, err := os.Stat(l.dir); err != nil {
		return nil, fmt.Errorf("content directory is not readable: %w", err)
	}

	var articles []*model.Article
	var skipped int

	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		article, err := l.loadFile(path)
		if err != nil {
			skipped++
			if l.metrics != nil {
				l.metrics.RecordParseFailure()
			}
			l.logger.Warn("記事の読み込みに失敗したためスキップします",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if article == nil {
			// ready: false の下書きは黙ってスキップする
			return nil
		}
		articles = append(articles, article)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("content directory walk failed: %w", err)
	}

	l.logger.Info("コーパスの読み込みが完了しました",
		slog.Uint64("generation", generation),
		slog.Int("articles", len(articles)),
		slog.Int("skipped", skipped),
	)

	return NewSnapshot(generation, articles), nil
}

// articleFrontMatter は記事ファイル先頭のYAMLフロントマターを表す。
type articleFrontMatter struct {
	Title          string   `yaml:"title"`
	Blurb          string   `yaml:"blurb"`
	Tags           []string `yaml:"tags"`
	Created        string   `yaml:"created"`
	Updated        string   `yaml:"updated"`
	Ready          *bool    `yaml:"ready"`
	Hidden         bool     `yaml:"hidden"`
	ExcludeFromRSS bool     `yaml:"exclude_from_rss"`
}

// loadFile は1ファイルを記事に変換する。
// 下書き（ready: false）は (nil, nil) を返す。
// title、created、updatedは必須であり、欠けている場合はParseErrorとなる。
func (l *Loader) loadFile(path string) (*model.Article, error) {
	rel, err := filepath.Rel(l.dir, path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}
	articlePath := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: articlePath, Reason: err.Error()}
	}

	var meta articleFrontMatter
	body, err := frontmatter.Parse(bytes.NewReader(src), &meta)
	if err != nil {
		return nil, &ParseError{Path: articlePath, Reason: fmt.Sprintf("front matter: %s", err)}
	}

	if meta.Ready != nil && !*meta.Ready {
		return nil, nil
	}

	if meta.Title == "" {
		return nil, &ParseError{Path: articlePath, Reason: "required field is missing: title"}
	}
	if meta.Created == "" {
		return nil, &ParseError{Path: articlePath, Reason: "required field is missing: created"}
	}
	if meta.Updated == "" {
		return nil, &ParseError{Path: articlePath, Reason: "required field is missing: updated"}
	}

	created, err := parseDate(meta.Created)
	if err != nil {
		return nil, &ParseError{Path: articlePath, Reason: fmt.Sprintf("created: %s", err)}
	}
	updated, err := parseDate(meta.Updated)
	if err != nil {
		return nil, &ParseError{Path: articlePath, Reason: fmt.Sprintf("updated: %s", err)}
	}
	if updated.Before(created) {
		return nil, &ParseError{Path: articlePath, Reason: "updated is before created"}
	}

	content, err := l.conv.Convert(body)
	if err != nil {
		return nil, &ParseError{Path: articlePath, Reason: err.Error()}
	}

	return &model.Article{
		Path:            articlePath,
		Title:           meta.Title,
		Blurb:           meta.Blurb,
		Tags:            normalizeTags(meta.Tags),
		Created:         created,
		Updated:         updated,
		Content:         content,
		Hidden:          meta.Hidden,
		ExcludeFromFeed: meta.ExcludeFromRSS,
	}, nil
}

// parseDate はフロントマターの日付文字列を解析する。
// YYYY-MM-DD形式を優先し、RFC3339もフォールバックとして受け付ける。
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse date %q", s)
	}
	return t, nil
}

// normalizeTags はタグの空白除去・空要素削除・重複排除を行い、昇順で返す。
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
