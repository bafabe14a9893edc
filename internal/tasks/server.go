package tasks

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

// Server はタスクリソースサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はタスクストアへのクエリ実行オブジェクト。
	store *store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はトークン再検証用のJWT署名鍵。authサービスと共有する。
	jwtSecret string
}

// NewServer は新しいタスクサーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションの適用を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("TASKS_DB_PATH", "/data/tasks.db")
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
	tasks := s.router.Group("/tasks")
	tasks.Use(middleware.JWTAuth(s.jwtSecret))
	{
		// タスク作成
		tasks.POST("/create", s.handleCreate())
		// タスク更新
		tasks.PUT("/update/:id", s.handleUpdate())
		// タスク取得
		tasks.GET("/get/:id", s.handleGetByID())
		// タスク削除
		tasks.DELETE("/delete/:id", s.handleDelete())
		// 認証済みユーザーのタスク一覧取得
		tasks.GET("/get", s.handleList())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tasks"})
	})
}

// createTaskRequest はタスク作成リクエストのJSON構造。
// UserIDはgatewayが検証済みトークンから注入した値。
type createTaskRequest struct {
	// Title はタスクのタイトル。
	Title string `json:"title"`
	// Description はタスクの説明。
	Description string `json:"description"`
	// Done は完了フラグ。
	Done bool `json:"done"`
	// UserID はタスクを所有するユーザーのID。
	UserID string `json:"userId"`
}

// updateTaskRequest はタスク更新リクエストのJSON構造。
// nilのフィールドは既存値を維持する部分更新。
type updateTaskRequest struct {
	// Title はタスクのタイトル。
	Title *string `json:"title"`
	// Description はタスクの説明。
	Description *string `json:"description"`
	// Done は完了フラグ。
	Done *bool `json:"done"`
}

// taskResponse はタスクのJSONレスポンス構造。
type taskResponse struct {
	// ID はタスクの一意識別子。
	ID string `json:"id"`
	// Title はタスクのタイトル。
	Title string `json:"title"`
	// Description はタスクの説明。
	Description string `json:"description"`
	// Done は完了フラグ。
	Done bool `json:"done"`
	// UserID はタスクを所有するユーザーのID。
	UserID string `json:"user_id"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// toTaskResponse はDB行をJSONレスポンスに変換する。
func toTaskResponse(t taskRecord) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Done:        t.Done,
		UserID:      t.UserID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// handleCreate はタスク作成を処理するハンドラを返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
			return
		}
		if req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
			return
		}

		now := time.Now().UTC().Format(time.RFC3339)
		task := taskRecord{
			ID:          uuid.New().String(),
			Title:       req.Title,
			Description: req.Description,
			Done:        req.Done,
			UserID:      req.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.createTask(c.Request.Context(), task); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("タスク作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"task": toTaskResponse(task)})
	}
}

// handleUpdate はタスクの部分更新を処理するハンドラを返す。
// 指定されなかったフィールドは既存値を維持する。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := c.Param("id")

		task, err := s.store.getTaskByID(c.Request.Context(), taskID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("タスク取得エラー: %v", err)
			return
		}

		var req updateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if req.Title != nil {
			task.Title = *req.Title
		}
		if req.Description != nil {
			task.Description = *req.Description
		}
		if req.Done != nil {
			task.Done = *req.Done
		}
		task.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

		if err := s.store.updateTask(c.Request.Context(), task); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("タスク更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"task": toTaskResponse(task)})
	}
}

// handleGetByID はタスク取得を処理するハンドラを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		task, err := s.store.getTaskByID(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("タスク取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"task": toTaskResponse(task)})
	}
}

// handleDelete はタスク削除を処理するハンドラを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		affected, err := s.store.deleteTask(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("タスク削除エラー: %v", err)
			return
		}
		if affected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// handleList は認証済みユーザーのタスク一覧取得を処理するハンドラを返す。
// 対象ユーザーはクエリパラメータではなく検証済みトークンから決まるため、
// 他ユーザーのタスクを覗くことはできない。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)

		tasks, err := s.store.listTasksByUserID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			log.Printf("タスク一覧取得エラー: %v", err)
			return
		}

		responses := make([]taskResponse, 0, len(tasks))
		for _, t := range tasks {
			responses = append(responses, toTaskResponse(t))
		}

		c.JSON(http.StatusOK, gin.H{"tasks": responses})
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
