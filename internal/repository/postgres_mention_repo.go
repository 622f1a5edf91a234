package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresMentionRepo はPostgreSQLを使用したMentionリポジトリ。
type PostgresMentionRepo struct {
	db *sql.DB
}

// NewPostgresMentionRepo はPostgresMentionRepoを生成する。
func NewPostgresMentionRepo(db *sql.DB) *PostgresMentionRepo {
	return &PostgresMentionRepo{db: db}
}

// Upsert はMentionを (target_path, source_url) キーで作成または更新する。
// 一意制約への ON CONFLICT により、同一キーへの並行クレームは
// データベース側で直列化される。
func (r *PostgresMentionRepo) Upsert(ctx context.Context, mention *model.Mention) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mentions (id, target_path, source_url, status, reject_reason,
		                       verified_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (target_path, source_url) DO UPDATE SET
		    status = EXCLUDED.status,
		    reject_reason = EXCLUDED.reject_reason,
		    verified_at = EXCLUDED.verified_at,
		    updated_at = EXCLUDED.updated_at`,
		mention.ID, mention.TargetPath, mention.SourceURL,
		string(mention.Status), nullString(string(mention.RejectReason)),
		nullTime(mention.VerifiedAt), mention.CreatedAt, mention.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Mentionの保存に失敗しました: %w", err)
	}
	return nil
}

// FindByKey は (target_path, source_url) でMentionを検索する。見つからない場合はnilを返す。
func (r *PostgresMentionRepo) FindByKey(ctx context.Context, targetPath, sourceURL string) (*model.Mention, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, target_path, source_url, status, reject_reason,
		        verified_at, created_at, updated_at
		 FROM mentions
		 WHERE target_path = $1 AND source_url = $2`,
		targetPath, sourceURL,
	)

	mention, err := scanMention(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Mentionの検索に失敗しました: %w", err)
	}
	return mention, nil
}

// ListVerifiedByTarget は指定記事への検証済みMentionを検証日時の昇順で取得する。
func (r *PostgresMentionRepo) ListVerifiedByTarget(ctx context.Context, targetPath string) ([]*model.Mention, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, target_path, source_url, status, reject_reason,
		        verified_at, created_at, updated_at
		 FROM mentions
		 WHERE target_path = $1 AND status = 'verified'
		 ORDER BY verified_at ASC`,
		targetPath,
	)
	if err != nil {
		return nil, fmt.Errorf("検証済みMentionの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectMentions(rows)
}

// ListVerifiedBefore は検証日時が指定時刻より古い検証済みMentionを最大limit件取得する。
func (r *PostgresMentionRepo) ListVerifiedBefore(ctx context.Context, before time.Time, limit int) ([]*model.Mention, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, target_path, source_url, status, reject_reason,
		        verified_at, created_at, updated_at
		 FROM mentions
		 WHERE status = 'verified' AND verified_at < $1
		 ORDER BY verified_at ASC
		 LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("再検証対象Mentionの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectMentions(rows)
}

// rowScanner はsql.Rowとsql.Rowsの共通走査インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMention は1行をMentionに読み取る。
func scanMention(row rowScanner) (*model.Mention, error) {
	mention := &model.Mention{}
	var status string
	var rejectReason sql.NullString
	var verifiedAt sql.NullTime

	if err := row.Scan(
		&mention.ID, &mention.TargetPath, &mention.SourceURL,
		&status, &rejectReason, &verifiedAt,
		&mention.CreatedAt, &mention.UpdatedAt,
	); err != nil {
		return nil, err
	}

	mention.Status = model.MentionStatus(status)
	mention.RejectReason = model.RejectReason(nullStringValue(rejectReason))
	if verifiedAt.Valid {
		t := verifiedAt.Time
		mention.VerifiedAt = &t
	}
	return mention, nil
}

// collectMentions は結果セット全体をMentionのスライスに読み取る。
func collectMentions(rows *sql.Rows) ([]*model.Mention, error) {
	var mentions []*model.Mention
	for rows.Next() {
		mention, err := scanMention(rows)
		if err != nil {
			return nil, fmt.Errorf("Mentionの読み取りに失敗しました: %w", err)
		}
		mentions = append(mentions, mention)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Mentionの走査に失敗しました: %w", err)
	}
	return mentions, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTime は*time.Timeをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var _ MentionRepository = (*PostgresMentionRepo)(nil)
