// Package model はドメインモデルを定義する。
package model

import "time"

// MentionStatus はWebmentionレコードの検証状態を表す。
type MentionStatus string

const (
	// MentionStatusReceived は受理済み・未検証の状態。
	MentionStatusReceived MentionStatus = "received"
	// MentionStatusVerifying は検証実行中の状態。
	MentionStatusVerifying MentionStatus = "verifying"
	// MentionStatusVerified はバックリンクの存在を確認済みの状態。
	MentionStatusVerified MentionStatus = "verified"
	// MentionStatusRejected は検証に失敗した状態。RejectReasonが設定される。
	MentionStatusRejected MentionStatus = "rejected"
	// MentionStatusRevoked は再検証でバックリンクの消失を確認した状態。
	MentionStatusRevoked MentionStatus = "revoked"
)

// RejectReason はWebmention検証失敗の理由を表す。
type RejectReason string

const (
	// RejectReasonUnreachable はソースURLへの到達失敗。
	RejectReasonUnreachable RejectReason = "unreachable"
	// RejectReasonTimeout はソースURLのフェッチタイムアウト。
	RejectReasonTimeout RejectReason = "timeout"
	// RejectReasonNoBacklink はソースにターゲットへのリンクが存在しない。
	RejectReasonNoBacklink RejectReason = "no_backlink"
	// RejectReasonMalformed はソースURLまたはコンテンツの形式不正。
	RejectReasonMalformed RejectReason = "malformed"
)

// Mention は受信したWebmentionクレームの永続レコードを表す。
// (TargetPath, SourceURL) の組が一意キーであり、同じ組の再クレームは
// 既存レコードの更新となる（重複レコードは作られない）。
type Mention struct {
	ID           string // UUID
	TargetPath   string // 言及された記事のパス
	SourceURL    string // 言及元のURL
	Status       MentionStatus
	RejectReason RejectReason // Status == rejected のときのみ非空
	VerifiedAt   *time.Time   // 最後に検証が成功した日時
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanTransitionTo はステータス遷移が状態機械として妥当かを返す。
// 許可される遷移:
//
//	received  → verifying
//	verifying → verified | rejected
//	verified  → verified | revoked （再検証）
//
// rejected と revoked は終端状態であり、新しいクレームの受理
// （received へのリセット）によってのみ抜けられる。
func (s MentionStatus) CanTransitionTo(next MentionStatus) bool {
	switch s {
	case MentionStatusReceived:
		return next == MentionStatusVerifying
	case MentionStatusVerifying:
		return next == MentionStatusVerified || next == MentionStatusRejected
	case MentionStatusVerified:
		return next == MentionStatusVerified || next == MentionStatusRevoked
	case MentionStatusRejected, MentionStatusRevoked:
		return next == MentionStatusReceived
	}
	return false
}
