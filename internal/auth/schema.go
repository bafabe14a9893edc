package auth

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。usersサービスと同じデータベースファイルを共有するため、
// internal/users/schema.go と同期すること。
const schema = `
CREATE TABLE IF NOT EXISTS users (
    -- ユーザーの一意識別子
    id TEXT PRIMARY KEY,
    -- メールアドレス。全体で一意
    email TEXT NOT NULL UNIQUE,
    -- パスワードの "ハッシュ:ソルト"。authサービスのみが解釈する
    password TEXT NOT NULL,
    -- 作成日時（RFC3339）
    created_at TEXT NOT NULL,
    -- 更新日時（RFC3339）
    updated_at TEXT
);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
