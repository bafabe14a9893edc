package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// パスワードハッシュのパラメータ。
// 反復回数はセキュリティとログイン性能のトレードオフを決める調整値で、
// 変更すると既存ユーザーのハッシュと互換性がなくなるため注意すること。
const (
	// pbkdf2Iterations はPBKDF2の反復回数。
	pbkdf2Iterations = 1000
	// pbkdf2KeyLength は導出鍵長（バイト）。
	pbkdf2KeyLength = 64
	// saltLength はソルト長（バイト）。
	saltLength = 16
)

// hashPassword はパスワードをソルト付きでハッシュ化し、
// "ハッシュ:ソルト" 形式の文字列を返す。ハッシュとソルトはいずれもhex表記。
func hashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ソルトの生成に失敗: %w", err)
	}

	saltHex := hex.EncodeToString(salt)
	hash := pbkdf2.Key([]byte(password), []byte(saltHex), pbkdf2Iterations, pbkdf2KeyLength, sha512.New)
	return hex.EncodeToString(hash) + ":" + saltHex, nil
}

// verifyPassword はパスワードが保存済みの "ハッシュ:ソルト" と一致するかを照合する。
// タイミング攻撃を避けるため定数時間で比較する。
func verifyPassword(password, stored string) bool {
	hashHex, saltHex, found := strings.Cut(stored, ":")
	if !found {
		return false
	}

	computed := pbkdf2.Key([]byte(password), []byte(saltHex), pbkdf2Iterations, pbkdf2KeyLength, sha512.New)
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(computed)), []byte(hashHex)) == 1
}
