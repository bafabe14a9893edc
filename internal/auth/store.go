package auth

import (
	"context"
	"database/sql"
)

// userRecord はusersテーブルの1行を表す。
// Passwordは "ハッシュ:ソルト" 形式で、このパッケージの外には公開しない。
type userRecord struct {
	// ID はユーザーの一意識別子。
	ID string
	// Email はメールアドレス。
	Email string
	// Password はパスワードの "ハッシュ:ソルト"。
	Password string
	// CreatedAt は作成日時（RFC3339）。
	CreatedAt string
}

// store は認証情報ストアへのクエリ実行オブジェクト。
type store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// newStore は新しいクエリ実行オブジェクトを生成する。
func newStore(db *sql.DB) *store {
	return &store{db: db}
}

// createUser は新しいユーザーを作成する。
func (s *store) createUser(ctx context.Context, id, email, password, createdAt string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password, created_at) VALUES (?, ?, ?, ?)",
		id, email, password, createdAt,
	)
	return err
}

// getUserByEmail はメールアドレスでユーザーを取得する。
// 存在しない場合はsql.ErrNoRowsを返す。
func (s *store) getUserByEmail(ctx context.Context, email string) (userRecord, error) {
	var u userRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, password, created_at FROM users WHERE email = ?",
		email,
	).Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt)
	return u, err
}

// getUserByID はIDでユーザーを取得する。
// トークン検証時にアカウントの存在を確認するために使用する。
// 存在しない場合はsql.ErrNoRowsを返す。
func (s *store) getUserByID(ctx context.Context, id string) (userRecord, error) {
	var u userRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, password, created_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt)
	return u, err
}
