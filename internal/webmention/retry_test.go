package webmention

import (
	"testing"
	"time"
)

func TestCalculateSendBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 30 * time.Second},
		{attempt: 1, want: 60 * time.Second},
		{attempt: 2, want: 120 * time.Second},
		{attempt: 3, want: 240 * time.Second},
		{attempt: 4, want: 480 * time.Second},
		{attempt: 5, want: 10 * time.Minute},
		{attempt: 10, want: 10 * time.Minute},
		{attempt: -1, want: 30 * time.Second},
	}

	for _, tt := range tests {
		if got := CalculateSendBackoff(tt.attempt); got != tt.want {
			t.Errorf("attempt=%d: バックオフ時間が一致しません: got=%v want=%v", tt.attempt, got, tt.want)
		}
	}
}

func TestClassifySendStatus(t *testing.T) {
	tests := []struct {
		status int
		want   SendOutcome
	}{
		{status: 200, want: SendAccepted},
		{status: 201, want: SendAccepted},
		{status: 202, want: SendAccepted},
		{status: 301, want: SendPermanent},
		{status: 400, want: SendPermanent},
		{status: 404, want: SendPermanent},
		{status: 429, want: SendTransient},
		{status: 500, want: SendTransient},
		{status: 503, want: SendTransient},
	}

	for _, tt := range tests {
		if got := ClassifySendStatus(tt.status); got != tt.want {
			t.Errorf("status=%d: 分類が一致しません: got=%v want=%v", tt.status, got, tt.want)
		}
	}
}
