package authclient

import (
	"context"
	"fmt"

	"github.com/nao1215/taskhub/pkg/httpclient"
	"github.com/nao1215/taskhub/pkg/middleware"
)

// Client はauthサービスへのHTTPクライアント。
// middleware.TokenVerifierを実装し、gatewayの認可ミドルウェアから使用される。
type Client struct {
	// http はauthサービスとのJSON通信クライアント。
	http *httpclient.Client
}

// New は新しいauthサービスクライアントを生成する。
// baseURLにはauthサービスのベースURL（例: "http://auth:8081"）を指定する。
func New(baseURL string) *Client {
	return &Client{http: httpclient.New(baseURL)}
}

// verifyRequest はトークン検証リクエストのJSON構造。
type verifyRequest struct {
	// Token は検証対象のベアラートークン。
	Token string `json:"token"`
}

// verifyResponse はトークン検証レスポンスのJSON構造。
type verifyResponse struct {
	// User は検証済みトークンに対応するユーザー情報。
	// authサービスがストアから再取得した値であり、トークンの
	// ペイロードをそのまま信用したものではない。
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// VerifyToken はトークンをauthサービスに送信して検証する。
// 検証に成功した場合、解決されたユーザー情報を返す。
// トークンが不正・期限切れ・削除済みユーザーのものである場合はエラーを返す。
func (c *Client) VerifyToken(ctx context.Context, token string) (middleware.Identity, error) {
	var resp verifyResponse
	if err := c.http.PostJSON(ctx, "/auth/token-verify", verifyRequest{Token: token}, &resp); err != nil {
		return middleware.Identity{}, fmt.Errorf("トークン検証リクエストに失敗: %w", err)
	}
	return middleware.Identity{ID: resp.User.ID, Email: resp.User.Email}, nil
}
