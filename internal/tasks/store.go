package tasks

import (
	"context"
	"database/sql"
)

// taskRecord はtasksテーブルの1行を表す。
type taskRecord struct {
	// ID はタスクの一意識別子。
	ID string
	// Title はタスクのタイトル。
	Title string
	// Description はタスクの説明。
	Description string
	// Done は完了フラグ。
	Done bool
	// UserID はタスクを所有するユーザーのID。
	UserID string
	// CreatedAt は作成日時（RFC3339）。
	CreatedAt string
	// UpdatedAt は更新日時（RFC3339）。
	UpdatedAt string
}

// store はタスクストアへのクエリ実行オブジェクト。
type store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// newStore は新しいクエリ実行オブジェクトを生成する。
func newStore(db *sql.DB) *store {
	return &store{db: db}
}

// createTask は新しいタスクを作成する。
func (s *store) createTask(ctx context.Context, t taskRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks (id, title, description, done, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.Title, t.Description, t.Done, t.UserID, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// getTaskByID はIDでタスクを取得する。
// 存在しない場合はsql.ErrNoRowsを返す。
func (s *store) getTaskByID(ctx context.Context, id string) (taskRecord, error) {
	var t taskRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, description, done, user_id, created_at, updated_at FROM tasks WHERE id = ?",
		id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.Done, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// updateTask はタスクの全フィールドを更新する。
// 部分更新の解決（未指定フィールドの既存値維持）は呼び出し元が行う。
func (s *store) updateTask(ctx context.Context, t taskRecord) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET title = ?, description = ?, done = ?, updated_at = ? WHERE id = ?",
		t.Title, t.Description, t.Done, t.UpdatedAt, t.ID,
	)
	return err
}

// deleteTask はタスクを削除する。
// 削除された行数を返す。0の場合はタスクが存在しない。
func (s *store) deleteTask(ctx context.Context, id string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// listTasksByUserID は指定ユーザーのタスクを作成日時の新しい順で取得する。
// 同時刻に作成されたタスクはrowidで後から作成されたものを先に並べる。
func (s *store) listTasksByUserID(ctx context.Context, userID string) ([]taskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, description, done, user_id, created_at, updated_at FROM tasks WHERE user_id = ? ORDER BY created_at DESC, rowid DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tasks []taskRecord
	for rows.Next() {
		var t taskRecord
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Done, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
