package users

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

// Server はユーザーリソースサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はユーザーストアへのクエリ実行オブジェクト。
	store *store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はトークン再検証用のJWT署名鍵。authサービスと共有する。
	jwtSecret string
}

// NewServer は新しいユーザーサーバーを生成する。
// authサービスと共有するユーザーデータベースを初期化する。
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
	users := s.router.Group("/users")
	users.Use(middleware.JWTAuth(s.jwtSecret))
	{
		// ユーザー作成（内部向け。gatewayからは公開されない）
		users.POST("/create", s.handleCreate())
		// 自分自身のプロフィール更新
		users.PUT("/update", s.handleUpdate())
		// ユーザー取得
		users.GET("/get/:id", s.handleGetByID())
		// 自分自身のアカウント削除
		users.DELETE("/delete-account", s.handleDeleteAccount())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "users"})
	})
}

// createUserRequest はユーザー作成リクエストのJSON構造。
type createUserRequest struct {
	// Email はメールアドレス。
	Email string `json:"email"`
}

// updateUserRequest はプロフィール更新リクエストのJSON構造。
type updateUserRequest struct {
	// Email は新しいメールアドレス。
	Email string `json:"email"`
}

// userResponse はユーザーのJSONレスポンス構造。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。未更新の場合はnull。
	UpdatedAt *string `json:"updated_at"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u userRecord) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
	if u.UpdatedAt.Valid {
		resp.UpdatedAt = &u.UpdatedAt.String
	}
	return resp
}

// handleCreate はユーザー作成を処理するハンドラを返す。
// 認証情報を持たないプロフィール行のみを作成する。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
			return
		}

		exists, err := s.store.emailExists(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("ユーザー検索エラー: %v", err)
			return
		}
		if exists {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
			return
		}

		userID := uuid.New().String()
		createdAt := time.Now().UTC().Format(time.RFC3339)
		if err := s.store.createUser(c.Request.Context(), userID, req.Email, createdAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("ユーザー作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": userResponse{
			ID:        userID,
			Email:     req.Email,
			CreatedAt: createdAt,
		}})
	}
}

// handleUpdate は認証済みユーザー自身のプロフィール更新を処理するハンドラを返す。
// 対象ユーザーはリクエストボディではなく検証済みトークンから決まる。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		var req updateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
			return
		}

		taken, err := s.store.emailTakenByOther(c.Request.Context(), req.Email, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("ユーザー検索エラー: %v", err)
			return
		}
		if taken {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
			return
		}

		updatedAt := time.Now().UTC().Format(time.RFC3339)
		affected, err := s.store.updateEmail(c.Request.Context(), userID, req.Email, updatedAt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("ユーザー更新エラー: %v", err)
			return
		}
		if affected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		updated, err := s.store.getUserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("更新後のユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": toUserResponse(updated)})
	}
}

// handleGetByID はユーザー取得を処理するハンドラを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.store.getUserByID(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": toUserResponse(u)})
	}
}

// handleDeleteAccount は認証済みユーザー自身のアカウント削除を処理するハンドラを返す。
// 削除後は発行済みトークンも無効になる。authサービスのトークン検証が
// この行の存在を確認するため。
func (s *Server) handleDeleteAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		affected, err := s.store.deleteUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("ユーザー削除エラー: %v", err)
			return
		}
		if affected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
