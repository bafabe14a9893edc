package users

import (
	"context"
	"database/sql"
)

// placeholderPassword はこのサービス経由で作成された行のパスワード欄に入る値。
// 実際の認証情報はauthサービスが管理する。
const placeholderPassword = "MANAGED_BY_AUTH_SERVICE"

// userRecord はusersテーブルの1行のプロフィール面を表す。
type userRecord struct {
	// ID はユーザーの一意識別子。
	ID string
	// Email はメールアドレス。
	Email string
	// CreatedAt は作成日時（RFC3339）。
	CreatedAt string
	// UpdatedAt は更新日時（RFC3339）。未更新の場合は空。
	UpdatedAt sql.NullString
}

// store はユーザーストアへのクエリ実行オブジェクト。
type store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// newStore は新しいクエリ実行オブジェクトを生成する。
func newStore(db *sql.DB) *store {
	return &store{db: db}
}

// createUser はプレースホルダーパスワードで新しいユーザー行を作成する。
func (s *store) createUser(ctx context.Context, id, email, createdAt string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password, created_at) VALUES (?, ?, ?, ?)",
		id, email, placeholderPassword, createdAt,
	)
	return err
}

// getUserByID はIDでユーザーを取得する。
// 存在しない場合はsql.ErrNoRowsを返す。
func (s *store) getUserByID(ctx context.Context, id string) (userRecord, error) {
	var u userRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, created_at, updated_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// emailTakenByOther はメールアドレスが別のユーザーに使われているかを返す。
func (s *store) emailTakenByOther(ctx context.Context, email, selfID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE email = ? AND id != ?",
		email, selfID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// emailExists はメールアドレスが既に登録されているかを返す。
func (s *store) emailExists(ctx context.Context, email string) (bool, error) {
	return s.emailTakenByOther(ctx, email, "")
}

// updateEmail はユーザーのメールアドレスを更新する。
// 更新された行数を返す。0の場合はユーザーが存在しない。
func (s *store) updateEmail(ctx context.Context, id, email, updatedAt string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET email = ?, updated_at = ? WHERE id = ?",
		email, updatedAt, id,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// deleteUser はユーザー行を削除する。
// 削除された行数を返す。0の場合はユーザーが存在しない。
func (s *store) deleteUser(ctx context.Context, id string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
