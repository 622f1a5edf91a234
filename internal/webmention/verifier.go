package webmention

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// VerifyResult はソースフェッチと検証の結果分類。
type VerifyResult int

const (
	// VerifyOK はバックリンクの存在を確認できた。
	VerifyOK VerifyResult = iota
	// VerifyUnreachable はソースへの到達に失敗した。
	VerifyUnreachable
	// VerifyTimeout はフェッチがタイムアウトした。
	VerifyTimeout
	// VerifyNoBacklink はソースをフェッチできたがターゲットへのリンクがない。
	VerifyNoBacklink
	// VerifyMalformed はソースURLまたはコンテンツが不正。
	VerifyMalformed
)

// RejectReason は検証結果を永続レコードの拒否理由に変換する。
// VerifyOKに対しては空を返す。
func (r VerifyResult) RejectReason() model.RejectReason {
	switch r {
	case VerifyUnreachable:
		return model.RejectReasonUnreachable
	case VerifyTimeout:
		return model.RejectReasonTimeout
	case VerifyNoBacklink:
		return model.RejectReasonNoBacklink
	case VerifyMalformed:
		return model.RejectReasonMalformed
	}
	return ""
}

// String はメトリクスのラベルに使用する結果名を返す。
func (r VerifyResult) String() string {
	switch r {
	case VerifyOK:
		return "ok"
	case VerifyUnreachable:
		return "unreachable"
	case VerifyTimeout:
		return "timeout"
	case VerifyNoBacklink:
		return "no_backlink"
	case VerifyMalformed:
		return "malformed"
	}
	return "unknown"
}

// SafeClientFactory はSSRF検証付きHTTPクライアント生成のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SafeClientFactory interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Verifier はWebmentionソースのフェッチとバックリンク検証を行う。
// フェッチはタイムアウトとレスポンスサイズの上限付きで実行され、
// SSRF防止クライアントを使用する。
type Verifier struct {
	ssrf        SafeClientFactory
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewVerifier はVerifierの新しいインスタンスを生成する。
func NewVerifier(ssrf SafeClientFactory, logger *slog.Logger, timeout time.Duration, maxBodySize int64) *Verifier {
	return &Verifier{
		ssrf:        ssrf,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Verify はsourceURLをフェッチし、targetURLと解決後が一致する
// ハイパーリンクがコンテンツ内に存在するかを検証する。
func (v *Verifier) Verify(ctx context.Context, sourceURL, targetURL string) VerifyResult {
	if err := v.ssrf.ValidateURL(sourceURL); err != nil {
		v.logger.Warn("ソースURLがSSRF検証に失敗しました",
			slog.String("source", sourceURL),
			slog.String("error", err.Error()),
		)
		return VerifyMalformed
	}

	target, err := url.Parse(targetURL)
	if err != nil {
		return VerifyMalformed
	}
	canonicalTarget := target.String()

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return VerifyMalformed
	}
	req.Header.Set("User-Agent", "Blogman/1.0 Webmention")
	req.Header.Set("Accept", "text/html, application/xhtml+xml, */*")

	client := v.ssrf.NewSafeClient(v.timeout, v.maxBodySize)
	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return VerifyTimeout
		}
		return VerifyUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return VerifyUnreachable
	}

	// 上限+1バイト読むことで超過を検出する
	body, err := io.ReadAll(io.LimitReader(resp.Body, v.maxBodySize+1))
	if err != nil {
		if isTimeout(err) {
			return VerifyTimeout
		}
		return VerifyUnreachable
	}
	if int64(len(body)) > v.maxBodySize {
		return VerifyMalformed
	}

	base := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		// リダイレクト後のURLを相対リンクの解決基準にする
		base = resp.Request.URL
	}

	links, err := extractLinks(bytes.NewReader(body), base)
	if err != nil {
		return VerifyMalformed
	}

	for _, link := range links {
		if link == canonicalTarget {
			return VerifyOK
		}
	}
	return VerifyNoBacklink
}

// isTimeout はエラーがタイムアウト起因かを判定する。
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
