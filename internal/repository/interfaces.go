// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// MentionRepository はWebmentionレコードの永続化インターフェース。
type MentionRepository interface {
	// Upsert はMentionを (target_path, source_url) キーで作成または更新する。
	// 同一キーの再クレームは新しいレコードを作らず既存レコードを更新する。
	Upsert(ctx context.Context, mention *model.Mention) error

	// FindByKey は (target_path, source_url) でMentionを検索する。
	// 見つからない場合はnilを返す。
	FindByKey(ctx context.Context, targetPath, sourceURL string) (*model.Mention, error)

	// ListVerifiedByTarget は指定記事への検証済みMentionを
	// 検証日時の昇順で取得する。
	ListVerifiedByTarget(ctx context.Context, targetPath string) ([]*model.Mention, error)

	// ListVerifiedBefore は検証日時が指定時刻より古い検証済みMentionを
	// 最大limit件取得する。再検証のバッチ処理で使用する。
	ListVerifiedBefore(ctx context.Context, before time.Time, limit int) ([]*model.Mention, error)
}
