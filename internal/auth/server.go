package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/taskhub/pkg/middleware"
)

// Server は認証局サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store は認証情報ストアへのクエリ実行オブジェクト。
	store *store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はJWT署名用の秘密鍵。
	jwtSecret string
}

// NewServer は新しい認証局サーバーを生成する。
// usersサービスと共有するユーザーデータベースを初期化する。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("USERS_DB_PATH", "/data/users.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:    router,
		port:      port,
		store:     newStore(sqlDB),
		db:        sqlDB,
		jwtSecret: getEnvOr("JWT_SECRET", "dev-secret-key"),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	auth := s.router.Group("/auth")
	{
		// ユーザー登録とトークン発行
		auth.POST("/register", s.handleRegister())
		// ログインとトークン発行
		auth.POST("/login", s.handleLogin())
		// トークン検証
		auth.POST("/token-verify", s.handleTokenVerify())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auth"})
	})
}

// credentialsRequest は登録・ログインリクエストのJSON構造。
type credentialsRequest struct {
	// Email はメールアドレス。
	Email string `json:"email"`
	// Password は平文パスワード。ハッシュ化後は保持しない。
	Password string `json:"password"`
}

// verifyTokenRequest はトークン検証リクエストのJSON構造。
type verifyTokenRequest struct {
	// Token は検証対象のベアラートークン。
	Token string `json:"token"`
}

// userResponse はユーザー情報のJSONレスポンス構造。
// パスワードハッシュは決して含めない。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u userRecord) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// handleRegister はユーザー登録を処理するハンドラを返す。
// パスワードをソルト付きでハッシュ化して保存し、トークンを発行する。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
			return
		}

		// メールアドレスの一意性を確認する
		_, err := s.store.getUserByEmail(c.Request.Context(), req.Email)
		if err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("ユーザー検索エラー: %v", err)
			return
		}

		stored, err := hashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("パスワードハッシュ化エラー: %v", err)
			return
		}

		userID := uuid.New().String()
		createdAt := time.Now().UTC().Format(time.RFC3339)
		if err := s.store.createUser(c.Request.Context(), userID, req.Email, stored, createdAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("ユーザー作成エラー: %v", err)
			return
		}

		token, err := middleware.GenerateJWT(s.jwtSecret, userID, req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("JWT生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":  userResponse{ID: userID, Email: req.Email, CreatedAt: createdAt},
			"token": token,
		})
	}
}

// handleLogin はログインを処理するハンドラを返す。
// メールアドレスの存在とパスワードの照合結果は区別せず、
// いずれも同じ401レスポンスを返す。アカウント列挙を防ぐため。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
			return
		}

		user, err := s.store.getUserByEmail(c.Request.Context(), req.Email)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("ユーザー検索エラー: %v", err)
			return
		}

		if !verifyPassword(req.Password, user.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		token, err := middleware.GenerateJWT(s.jwtSecret, user.ID, user.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("JWT生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user":  toUserResponse(user),
			"token": token,
		})
	}
}

// handleTokenVerify はトークン検証を処理するハンドラを返す。
// トークンのペイロードを信用せず、ユーザーをストアから再取得する。
// アカウントが削除されていれば、有効期限内のトークンでも401を返す。
func (s *Server) handleTokenVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
			return
		}

		claims, err := middleware.ParseJWT(s.jwtSecret, req.Token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		user, err := s.store.getUserByID(c.Request.Context(), claims.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("ユーザー検索エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
