package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity は検証済みトークンから解決されたユーザー情報。
// リクエスト処理中のみコンテキストに保持され、永続化されない。
type Identity struct {
	// ID はユーザーの一意識別子。
	ID string
	// Email はユーザーのメールアドレス。
	Email string
}

// TokenVerifier はベアラートークンを検証して認証済みユーザー情報を返す。
// gatewayではauthサービスへのHTTPクライアントがこれを実装する。
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

// TokenAuth はトークン検証を認証局（authサービス）に委譲するGinミドルウェアを返す。
// JWTAuthと異なり署名鍵を持たず、検証のたびに認証局へ問い合わせる。
// これにより削除済みアカウントのトークンが即座に無効化される。
// 検証に成功した場合、コンテキストに "user_id" と "email" を設定する。
func TokenAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "No token provided",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token format",
			})
			return
		}

		identity, err := verifier.VerifyToken(c.Request.Context(), tokenString)
		if err != nil {
			log.Printf("トークン検証に失敗: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		c.Set("user_id", identity.ID)
		c.Set("email", identity.Email)
		c.Next()
	}
}
