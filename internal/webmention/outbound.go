package webmention

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/blogman/internal/content"
	"github.com/hitoshi/blogman/internal/model"
)

// SendRecorder は送信結果のメトリクス記録インターフェース。
type SendRecorder interface {
	RecordMentionSend(result string)
}

// sendJob は送信待ちのWebmention通知。
type sendJob struct {
	source string
	target string
}

// Notifier は記事更新時に外部サイトへWebmentionを送信する。
// スナップショットの差分から新規・更新記事を検出し、本文中の外部リンク
// ごとにエンドポイントを発見してPOSTする。送信はネットワーク待ちと
// バックオフを伴うため、バッファ付きキューとワーカープールで実行し、
// NotifyUpdatedの呼び出し元（再読み込みループ）をブロックしない。
type Notifier struct {
	ssrf        SafeClientFactory
	logger      *slog.Logger
	metrics     SendRecorder
	baseURL     string
	timeout     time.Duration
	maxBodySize int64
	maxAttempts int

	queue   chan sendJob
	workers int
	wg      sync.WaitGroup

	// sleep はテストで差し替えるためのフック
	sleep func(time.Duration)
}

// NotifierConfig はNotifierの動作パラメータ。
type NotifierConfig struct {
	BaseURL       string
	Timeout       time.Duration
	MaxBodySize   int64
	MaxAttempts   int
	QueueSize     int
	MaxConcurrent int
}

// NewNotifier はNotifierの新しいインスタンスを生成する。
func NewNotifier(ssrf SafeClientFactory, logger *slog.Logger, metrics SendRecorder, cfg NotifierConfig) *Notifier {
	return &Notifier{
		ssrf:        ssrf,
		logger:      logger,
		metrics:     metrics,
		baseURL:     cfg.BaseURL,
		timeout:     cfg.Timeout,
		maxBodySize: cfg.MaxBodySize,
		maxAttempts: cfg.MaxAttempts,
		queue:       make(chan sendJob, cfg.QueueSize),
		workers:     cfg.MaxConcurrent,
		sleep:       time.Sleep,
	}
}

// Start は送信ワーカーを起動する。ctxのキャンセルで全ワーカーが停止する。
func (n *Notifier) Start(ctx context.Context) {
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.runWorker(ctx)
		}()
	}
}

// Wait は全ワーカーの終了を待つ。
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// runWorker はキューから送信ジョブを取り出して実行するループ。
func (n *Notifier) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-n.queue:
			n.sendMention(ctx, job.source, job.target)
		}
	}
}

// NotifyUpdated は旧スナップショットとの差分から新規・変更記事を検出し、
// それぞれの外部リンク先への送信ジョブをキューに積む。リンク抽出までを
// 呼び出し元で行い、ネットワークを伴う送信はワーカーに委譲するため、
// この呼び出しはブロックしない。キューが満杯のジョブは破棄して記録する。
func (n *Notifier) NotifyUpdated(ctx context.Context, old, current *content.Snapshot) {
	changed := diffArticles(old, current)
	if len(changed) == 0 {
		return
	}

	base, err := url.Parse(n.baseURL)
	if err != nil {
		n.logger.Error("ベースURLの解析に失敗しました", slog.String("error", err.Error()))
		return
	}

	for _, article := range changed {
		if ctx.Err() != nil {
			return
		}
		n.enqueueArticle(article, base)
	}
}

// diffArticles は新規追加または内容が変化した記事を返す。
// 変化の判定はContentとUpdatedの比較による。
func diffArticles(old, current *content.Snapshot) []*model.Article {
	var changed []*model.Article
	for _, path := range current.Paths() {
		article, ok := current.Get(path)
		if !ok {
			continue
		}
		prev, existed := old.Get(path)
		if !existed || prev.Content != article.Content || !prev.Updated.Equal(article.Updated) {
			changed = append(changed, article)
		}
	}
	return changed
}

// enqueueArticle は単一記事の外部リンクそれぞれの送信ジョブを積む。
func (n *Notifier) enqueueArticle(article *model.Article, base *url.URL) {
	source := model.CanonicalURL(n.baseURL, article.Path)
	sourceURL, err := url.Parse(source)
	if err != nil {
		return
	}

	links, err := extractLinks(strings.NewReader(article.Content), sourceURL)
	if err != nil {
		n.logger.Warn("記事本文のリンク抽出に失敗しました",
			slog.String("path", article.Path),
			slog.String("error", err.Error()),
		)
		return
	}

	for _, link := range links {
		linkURL, err := url.Parse(link)
		if err != nil {
			continue
		}
		// 自サイト内リンクには送信しない
		if strings.EqualFold(linkURL.Host, base.Host) {
			continue
		}
		select {
		case n.queue <- sendJob{source: source, target: link}:
		default:
			n.logger.Warn("送信キューが満杯のため通知を破棄します",
				slog.String("source", source),
				slog.String("target", link),
			)
			n.metrics.RecordMentionSend("dropped")
		}
	}
}

// sendMention はターゲットのエンドポイントを発見しWebmentionをPOSTする。
// 一時的障害はバックオフ付きでリトライし、恒久的拒否は即座に諦める。
func (n *Notifier) sendMention(ctx context.Context, source, target string) {
	endpoint, err := n.discoverEndpoint(ctx, target)
	if err != nil {
		n.logger.Info("Webmentionエンドポイントが見つかりませんでした",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		n.metrics.RecordMentionSend("no_endpoint")
		return
	}
	if endpoint == "" {
		n.metrics.RecordMentionSend("no_endpoint")
		return
	}

	form := url.Values{}
	form.Set("source", source)
	form.Set("target", target)
	body := form.Encode()

	client := n.ssrf.NewSafeClient(n.timeout, n.maxBodySize)
	for attempt := 0; attempt < n.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
		if err != nil {
			n.metrics.RecordMentionSend("error")
			return
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", "Blogman/1.0 Webmention")

		resp, err := client.Do(req)
		if err != nil {
			n.logger.Warn("Webmention送信に失敗しました",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			if attempt+1 < n.maxAttempts {
				n.sleep(CalculateSendBackoff(attempt))
				continue
			}
			n.metrics.RecordMentionSend("error")
			return
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		switch ClassifySendStatus(resp.StatusCode) {
		case SendAccepted:
			n.logger.Info("Webmentionを送信しました",
				slog.String("source", source),
				slog.String("target", target),
				slog.String("endpoint", endpoint),
			)
			n.metrics.RecordMentionSend("accepted")
			return
		case SendTransient:
			if attempt+1 < n.maxAttempts {
				n.sleep(CalculateSendBackoff(attempt))
				continue
			}
			n.metrics.RecordMentionSend("transient_exhausted")
			return
		case SendPermanent:
			n.logger.Info("Webmentionが拒否されました",
				slog.String("endpoint", endpoint),
				slog.Int("status", resp.StatusCode),
			)
			n.metrics.RecordMentionSend("rejected")
			return
		}
	}
}

// discoverEndpoint はターゲットURLをフェッチしてWebmentionエンドポイントを
// 発見する。Linkヘッダを優先し、なければHTML内のrel属性を探す。
// エンドポイントが宣言されていない場合は空文字列を返す。
func (n *Notifier) discoverEndpoint(ctx context.Context, target string) (string, error) {
	if err := n.ssrf.ValidateURL(target); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Blogman/1.0 Webmention")

	client := n.ssrf.NewSafeClient(n.timeout, n.maxBodySize)
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	base := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	if endpoint := endpointFromLinkHeader(resp.Header.Values("Link"), base); endpoint != "" {
		return endpoint, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, n.maxBodySize))
	if err != nil {
		return "", err
	}
	return endpointFromHTML(bytes.NewReader(body), base), nil
}
