package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/picsearch/internal/model"
)

// PostgresSearchRecordRepo はPostgreSQLを使用した検索ログリポジトリ。
type PostgresSearchRecordRepo struct {
	db *sql.DB
}

// NewPostgresSearchRecordRepo はPostgresSearchRecordRepoを生成する。
func NewPostgresSearchRecordRepo(db *sql.DB) *PostgresSearchRecordRepo {
	return &PostgresSearchRecordRepo{db: db}
}

// Create は検索レコードを追記する。
func (r *PostgresSearchRecordRepo) Create(ctx context.Context, record *model.SearchRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_records (id, user_id, term, created_at)
		 VALUES ($1, $2, $3, $4)`,
		record.ID, record.UserID, record.Term, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert search record: %w", err)
	}
	return nil
}

// ListRecentByUserID は指定ユーザーの直近の検索を新しい順で最大limit件返す。
func (r *PostgresSearchRecordRepo) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]model.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT term, created_at
		 FROM search_records
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list search records: %w", err)
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.Term, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan search record: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search records: %w", err)
	}

	return entries, nil
}

// TopTerms は全ユーザー横断で出現回数の多い検索語を最大limit件返す。
// 大文字小文字を区別した完全一致でグループ化する。
// 同数の場合は検索語の辞書順で並べ、結果を決定的にする。
func (r *PostgresSearchRecordRepo) TopTerms(ctx context.Context, limit int) ([]model.TopSearch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT term, count(*) AS cnt
		 FROM search_records
		 GROUP BY term
		 ORDER BY cnt DESC, term ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top terms: %w", err)
	}
	defer rows.Close()

	top := []model.TopSearch{}
	for rows.Next() {
		var t model.TopSearch
		if err := rows.Scan(&t.Term, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan top term: %w", err)
		}
		top = append(top, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top terms: %w", err)
	}

	return top, nil
}

// compile-time interface check
var _ SearchRecordRepository = (*PostgresSearchRecordRepo)(nil)
