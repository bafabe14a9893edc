package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/taskhub/pkg/authclient"
	"github.com/nao1215/taskhub/pkg/httpclient"
	"github.com/nao1215/taskhub/pkg/middleware"
)

// Server はAPI GatewayサービスのHTTPサーバー。
// ルーティングテーブルとバックエンドの接続先は起動時に固定され、
// 以降は変更されない。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// authClient はauthサービスへのトークン検証クライアント。
	authClient *authclient.Client
	// proxyClient はバックエンドへの転送に使用するHTTPクライアント。
	proxyClient *http.Client
	// serviceURLs はバックエンドサービスのURL。
	serviceURLs serviceURLConfig
	// healthClients はヘルスチェック用のサービス別クライアント。
	healthClients map[string]*httpclient.Client
}

// serviceURLConfig はバックエンドサービスのURL設定。
type serviceURLConfig struct {
	Auth  string
	Users string
	Tasks string
}

// proxyTimeout はバックエンドへの転送1回あたりのタイムアウト。
// リトライは行わず、タイムアウトは即座にクライアントへのエラーになる。
const proxyTimeout = 30 * time.Second

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(port string) (*Server, error) {
	urls := serviceURLConfig{
		Auth:  getEnvOr("AUTH_SERVICE_URL", "http://localhost:8081"),
		Users: getEnvOr("USERS_SERVICE_URL", "http://localhost:8082"),
		Tasks: getEnvOr("TASKS_SERVICE_URL", "http://localhost:8083"),
	}

	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))

	s := &Server{
		router:      router,
		port:        port,
		authClient:  authclient.New(urls.Auth),
		proxyClient: &http.Client{Timeout: proxyTimeout},
		serviceURLs: urls,
		healthClients: map[string]*httpclient.Client{
			"auth":  httpclient.New(urls.Auth),
			"users": httpclient.New(urls.Users),
			"tasks": httpclient.New(urls.Tasks),
		},
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 公開ルートとバックエンドの対応は起動時に固定される。
func (s *Server) setupRoutes() {
	// 認証エンドポイント（認証不要）
	auth := s.router.Group("/auth")
	{
		auth.POST("/register", s.handleProxy(s.serviceURLs.Auth, "/auth/register"))
		auth.POST("/login", s.handleProxy(s.serviceURLs.Auth, "/auth/login"))
		auth.POST("/token-verify", s.handleProxy(s.serviceURLs.Auth, "/auth/token-verify"))
	}

	// ユーザーエンドポイント（要認証。検証はauthサービスに委譲する）
	users := s.router.Group("/users")
	users.Use(middleware.TokenAuth(s.authClient))
	{
		users.PUT("/update", s.handleProxy(s.serviceURLs.Users, "/users/update"))
		users.GET("/get/:id", s.handleProxyWithParam(s.serviceURLs.Users, "/users/get/", "id"))
		users.DELETE("/delete-account", s.handleProxy(s.serviceURLs.Users, "/users/delete-account"))
	}

	// タスクエンドポイント（要認証）
	tasks := s.router.Group("/tasks")
	tasks.Use(middleware.TokenAuth(s.authClient))
	{
		tasks.POST("/create", s.handleProxyTaskCreate())
		tasks.PUT("/update/:id", s.handleProxyWithParam(s.serviceURLs.Tasks, "/tasks/update/", "id"))
		tasks.GET("/get/:id", s.handleProxyWithParam(s.serviceURLs.Tasks, "/tasks/get/", "id"))
		tasks.DELETE("/delete/:id", s.handleProxyWithParam(s.serviceURLs.Tasks, "/tasks/delete/", "id"))
		tasks.GET("/get", s.handleProxy(s.serviceURLs.Tasks, "/tasks/get"))
	}

	// 全サービスのヘルスチェックを集約する
	s.router.GET("/health", s.handleHealth())
}

// handleProxy は指定されたサービスにリクエストをプロキシするハンドラを返す。
func (s *Server) handleProxy(baseURL, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		proxyURL := baseURL + path
		if c.Request.URL.RawQuery != "" {
			proxyURL += "?" + c.Request.URL.RawQuery
		}
		s.doProxy(c, c.Request.Method, proxyURL, c.Request.Body)
	}
}

// handleProxyWithParam はURLパラメータを含むプロキシハンドラを返す。
func (s *Server) handleProxyWithParam(baseURL, pathPrefix, paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		proxyURL := baseURL + pathPrefix + c.Param(paramName)
		if c.Request.URL.RawQuery != "" {
			proxyURL += "?" + c.Request.URL.RawQuery
		}
		s.doProxy(c, c.Request.Method, proxyURL, c.Request.Body)
	}
}

// handleProxyTaskCreate はタスク作成をプロキシするハンドラを返す。
// 検証済みトークンから解決したユーザーIDを所有者としてボディに注入する。
// クライアントがボディで指定したuserIdは常に上書きされるため、
// 他ユーザー名義のタスクを作成することはできない。
func (s *Server) handleProxyTaskCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawBody, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("リクエストボディの読み取りに失敗: %v", err)
			return
		}

		body := map[string]any{}
		if len(rawBody) > 0 {
			if err := json.Unmarshal(rawBody, &body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}
		body["userId"] = middleware.GetUserID(c)

		modified, err := json.Marshal(body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("リクエストボディのシリアライズに失敗: %v", err)
			return
		}

		s.doProxy(c, http.MethodPost, s.serviceURLs.Tasks+"/tasks/create", bytes.NewReader(modified))
	}
}

// doProxy はリクエストをバックエンドサービスにプロキシする共通処理。
// 元のAuthorizationヘッダーを転送し、バックエンドがトークンを
// 再検証できるようにする。バックエンドのステータスとJSONボディは
// そのままクライアントに返し、通信エラーの詳細はログにのみ残す。
func (s *Server) doProxy(c *gin.Context, method, url string, body io.Reader) {
	req, err := http.NewRequestWithContext(c.Request.Context(), method, url, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		log.Printf("プロキシリクエストの作成に失敗: %v", err)
		return
	}

	contentType := c.GetHeader("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", c.GetHeader("Authorization"))

	resp, err := s.proxyClient.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Internal Server Error"})
		log.Printf("プロキシエラー: url=%s, error=%v", url, err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		log.Printf("レスポンスの読み取りに失敗: %v", err)
		return
	}

	// JSONボディはステータスごとそのまま返す。バックエンドがJSON以外を
	// 返した場合はエラーメッセージを汎用文言に差し替え、内部詳細を隠す
	if json.Valid(respBody) {
		c.Data(resp.StatusCode, "application/json", respBody)
		return
	}
	if resp.StatusCode >= http.StatusBadRequest {
		c.JSON(resp.StatusCode, gin.H{"error": "Internal Server Error"})
		return
	}
	c.Data(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
