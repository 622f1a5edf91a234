package webmention

import (
	"net/http"
	"time"
)

// SendBackoffInitial は送信リトライの初期待機時間。
const SendBackoffInitial = 30 * time.Second

// SendBackoffMax は送信リトライの最大待機時間。
const SendBackoffMax = 10 * time.Minute

// CalculateSendBackoff は送信リトライのバックオフ時間を計算する。
// 初期値から指数的に倍増し、上限を超えない。
func CalculateSendBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return SendBackoffInitial
	}
	backoff := SendBackoffInitial
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= SendBackoffMax {
			return SendBackoffMax
		}
	}
	return backoff
}

// SendOutcome は送信先エンドポイントのレスポンス分類。
type SendOutcome int

const (
	// SendAccepted はエンドポイントが受理した。
	SendAccepted SendOutcome = iota
	// SendTransient は一時的障害でリトライの価値がある。
	SendTransient
	// SendPermanent は恒久的拒否でリトライしない。
	SendPermanent
)

// ClassifySendStatus はHTTPステータスコードから送信結果を分類する。
// 2xxは受理、429と5xxは一時的障害、それ以外は恒久的拒否。
func ClassifySendStatus(statusCode int) SendOutcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return SendAccepted
	case statusCode == http.StatusTooManyRequests:
		return SendTransient
	case statusCode >= 500:
		return SendTransient
	default:
		return SendPermanent
	}
}
