package webmention

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

func seedVerified(t *testing.T, store *memoryStore, targetPath, sourceURL string, verifiedAt time.Time) *model.Mention {
	t.Helper()
	m := &model.Mention{
		ID:         "00000000-0000-0000-0000-000000000001",
		TargetPath: targetPath,
		SourceURL:  sourceURL,
		Status:     model.MentionStatusVerified,
		VerifiedAt: &verifiedAt,
		CreatedAt:  verifiedAt,
		UpdatedAt:  verifiedAt,
	}
	if err := store.Upsert(context.Background(), m); err != nil {
		t.Fatalf("テストデータの投入に失敗しました: %v", err)
	}
	return m
}

func newTestRechecker(store MentionStore, verifier SourceVerifier) *Rechecker {
	return NewRechecker(store, &fixedSnapshots{snap: testSnapshot()}, verifier, testLogger(),
		"https://blog.example.com", time.Hour, 7*24*time.Hour, 50)
}

func TestRecheckRenewsVerified(t *testing.T) {
	store := newMemoryStore()
	stale := time.Now().Add(-30 * 24 * time.Hour)
	seedVerified(t, store, "a/x", "https://other.example.com/p", stale)

	verifier := &countingVerifier{result: VerifyOK}
	r := newTestRechecker(store, verifier)
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("再検証がエラーになりました: %v", err)
	}

	m := store.get("a/x", "https://other.example.com/p")
	if m.Status != model.MentionStatusVerified {
		t.Errorf("状態が一致しません: got=%s want=verified", m.Status)
	}
	if m.VerifiedAt == nil || !m.VerifiedAt.After(stale) {
		t.Error("再検証成功でVerifiedAtが更新されるべきです")
	}
	if verifier.callCount() != 1 {
		t.Errorf("検証回数が一致しません: got=%d want=1", verifier.callCount())
	}
}

func TestRecheckRevokesOnBacklinkGone(t *testing.T) {
	store := newMemoryStore()
	seedVerified(t, store, "a/x", "https://other.example.com/p", time.Now().Add(-30*24*time.Hour))

	r := newTestRechecker(store, &countingVerifier{result: VerifyNoBacklink})
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("再検証がエラーになりました: %v", err)
	}

	m := store.get("a/x", "https://other.example.com/p")
	if m.Status != model.MentionStatusRevoked {
		t.Errorf("バックリンク消失は失効になるべきです: got=%s", m.Status)
	}
}

func TestRecheckKeepsVerifiedOnTransientFailure(t *testing.T) {
	store := newMemoryStore()
	stale := time.Now().Add(-30 * 24 * time.Hour)
	seedVerified(t, store, "a/x", "https://other.example.com/p", stale)

	r := newTestRechecker(store, &countingVerifier{result: VerifyTimeout})
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("再検証がエラーになりました: %v", err)
	}

	m := store.get("a/x", "https://other.example.com/p")
	if m.Status != model.MentionStatusVerified {
		t.Errorf("一時的障害では検証済みを維持するべきです: got=%s", m.Status)
	}
	if !m.VerifiedAt.Equal(stale) {
		t.Error("一時的障害ではVerifiedAtを更新しないべきです")
	}
}

func TestRecheckRevokesDeletedArticle(t *testing.T) {
	store := newMemoryStore()
	seedVerified(t, store, "deleted/post", "https://other.example.com/p", time.Now().Add(-30*24*time.Hour))

	verifier := &countingVerifier{result: VerifyOK}
	r := newTestRechecker(store, verifier)
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("再検証がエラーになりました: %v", err)
	}

	m := store.get("deleted/post", "https://other.example.com/p")
	if m.Status != model.MentionStatusRevoked {
		t.Errorf("削除済み記事へのMentionは失効になるべきです: got=%s", m.Status)
	}
	// 記事が存在しない場合はフェッチ自体を行わない
	if verifier.callCount() != 0 {
		t.Errorf("検証フェッチが発生しました: calls=%d", verifier.callCount())
	}
}

func TestRecheckSkipsFresh(t *testing.T) {
	store := newMemoryStore()
	seedVerified(t, store, "a/x", "https://other.example.com/p", time.Now().Add(-time.Hour))

	verifier := &countingVerifier{result: VerifyNoBacklink}
	r := newTestRechecker(store, verifier)
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("再検証がエラーになりました: %v", err)
	}

	if verifier.callCount() != 0 {
		t.Errorf("TTL内のMentionは再検証しないべきです: calls=%d", verifier.callCount())
	}
	m := store.get("a/x", "https://other.example.com/p")
	if m.Status != model.MentionStatusVerified {
		t.Errorf("状態が変わりました: got=%s", m.Status)
	}
}
