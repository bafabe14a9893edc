package tasks

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/nao1215/taskhub/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testJWTSecret はテスト用のJWT署名秘密鍵。
const testJWTSecret = "test-secret-key"

// newTestServer はテスト用のtasksサーバーをインメモリSQLiteで構築する。
func newTestServer(t *testing.T) *Server {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	// インメモリDBは接続ごとに独立するため接続を1つに固定する
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	router := gin.New()
	s := &Server{
		router:    router,
		port:      "0",
		store:     newStore(sqlDB),
		db:        sqlDB,
		jwtSecret: testJWTSecret,
	}
	s.setupRoutes()

	return s
}

// bearerToken はテスト用のJWTトークンを生成する。
func bearerToken(t *testing.T, userID, email string) string {
	t.Helper()

	token, err := middleware.GenerateJWT(testJWTSecret, userID, email)
	if err != nil {
		t.Fatalf("テスト用JWT生成に失敗: %v", err)
	}
	return "Bearer " + token
}

// doRequest はテスト用のリクエストを実行する。
func doRequest(t *testing.T, s *Server, method, path, authHeader string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("リクエストボディのシリアライズに失敗: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	s.router.ServeHTTP(w, req)
	return w
}

// seedTask はテスト用のタスク行を作成日時つきでDBに挿入する。
func seedTask(t *testing.T, s *Server, id, title, userID, createdAt string) {
	t.Helper()

	if err := s.store.createTask(context.Background(), taskRecord{
		ID:        id,
		Title:     title,
		UserID:    userID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}); err != nil {
		t.Fatalf("テスト用タスク挿入に失敗: %v", err)
	}
}

// taskEnvelope はレスポンスのパース用構造体。
type taskEnvelope struct {
	Task    taskResponse   `json:"task"`
	Tasks   []taskResponse `json:"tasks"`
	Success bool           `json:"success"`
	Error   string         `json:"error"`
}

// TestTasksAuthRequired は直接呼び出し時もトークン検証が行われることのテスト。
// gatewayを経由しないリクエストでも認可境界が保たれる。
func TestTasksAuthRequired(t *testing.T) {
	t.Parallel()

	t.Run("Authorizationヘッダーなしは401になること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		w := doRequest(t, s, http.MethodGet, "/tasks/get", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("不正なトークンは401になること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		w := doRequest(t, s, http.MethodPost, "/tasks/create", "Bearer not-a-jwt", map[string]string{"title": "t"})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestHandleCreate はタスク作成ハンドラのテスト。
func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("タスクを作成できること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		auth := bearerToken(t, "user-a", "a@x.com")

		w := doRequest(t, s, http.MethodPost, "/tasks/create", auth, map[string]any{
			"title":       "t",
			"description": "d",
			"userId":      "user-a",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		var resp taskEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Task.ID == "" {
			t.Error("task.idが空")
		}
		if resp.Task.Title != "t" {
			t.Errorf("task.title = %q, want %q", resp.Task.Title, "t")
		}
		if resp.Task.UserID != "user-a" {
			t.Errorf("task.user_id = %q, want %q", resp.Task.UserID, "user-a")
		}
		if resp.Task.Done {
			t.Error("task.doneの初期値がtrue")
		}
	})

	t.Run("タイトルが必須であること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		auth := bearerToken(t, "user-a", "a@x.com")

		w := doRequest(t, s, http.MethodPost, "/tasks/create", auth, map[string]string{"userId": "user-a"})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}

		var resp taskEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Error != "Title is required" {
			t.Errorf("error = %q, want %q", resp.Error, "Title is required")
		}
	})

	t.Run("ユーザーIDが必須であること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		auth := bearerToken(t, "user-a", "a@x.com")

		w := doRequest(t, s, http.MethodPost, "/tasks/create", auth, map[string]string{"title": "t"})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}

		var resp taskEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Error != "User ID is required" {
			t.Errorf("error = %q, want %q", resp.Error, "User ID is required")
		}
	})
}

// TestHandleUpdate はタスク更新ハンドラのテスト。
func TestHandleUpdate(t *testing.T) {
	t.Parallel()

	t.Run("指定したフィールドのみ更新されること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		auth := bearerToken(t, "user-a", "a@x.com")
		seedTask(t, s, "task-1", "original", "user-a", "2024-01-01T00:00:00Z")

		w := doRequest(t, s, http.MethodPut, "/tasks/update/task-1", auth, map[string]any{"done": true})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
		}

		var resp taskEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if !resp.Task.Done {
			t.Error("task.doneが更新されていない")
		}
		// 未指定のフィールドは既存値を維持する
		if resp.Task.Title != "original" {
			t.Errorf("task.title = %q, want %q", resp.Task.Title, "original")
		}
	})

	t.Run("存在しないタスクは404になること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		auth := bearerToken(t, "user-a", "a@x.com")

		w := doRequest(t, s, http.MethodPut, "/tasks/update/missing", auth, map[string]string{"title": "t"})
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}

		var resp taskEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Error != "Task not found" {
			t.Errorf("error = %q, want %q", resp.Error, "Task not found")
		}
	})
}

// TestHandleGetByID はタスク取得ハンドラのテスト。
func TestHandleGetByID(t *testing.T) {
	t.Parallel()

	t.Run("IDでタスクを取得できること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		auth := bearerToken(t, "user-a", "a@x.com")
		seedTask(t, s, "task-1", "t", "user-a", "2024-01-01T00:00:00Z")

		w := doRequest(t, s, http.MethodGet, "/tasks/get/task-1", auth, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var resp taskEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp.Task.ID != "task-1" {
			t.Errorf("task.id = %q, want %q", resp.Task.ID, "task-1")
		}
	})

	t.Run("存在しないタスクは404になること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		auth := bearerToken(t, "user-a", "a@x.com")

		w := doRequest(t, s, http.MethodGet, "/tasks/get/missing", auth, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestHandleDelete はタスク削除ハンドラのテスト。
func TestHandleDelete(t *testing.T) {
	t.Parallel()

	t.Run("タスクを削除できること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		auth := bearerToken(t, "user-a", "a@x.com")
		seedTask(t, s, "task-1", "t", "user-a", "2024-01-01T00:00:00Z")

		w := doRequest(t, s, http.MethodDelete, "/tasks/delete/task-1", auth, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var resp taskEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if !resp.Success {
			t.Error("successがfalse")
		}

		// 削除後は取得できない
		w = doRequest(t, s, http.MethodGet, "/tasks/get/task-1", auth, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("削除後の取得: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("存在しないタスクは404になること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		auth := bearerToken(t, "user-a", "a@x.com")

		w := doRequest(t, s, http.MethodDelete, "/tasks/delete/missing", auth, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestHandleList はタスク一覧取得ハンドラのテスト。
func TestHandleList(t *testing.T) {
	t.Parallel()

	t.Run("自分のタスクのみを作成日時の新しい順で返すこと", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		seedTask(t, s, "task-old", "old", "user-a", "2024-01-01T00:00:00Z")
		seedTask(t, s, "task-new", "new", "user-a", "2024-02-01T00:00:00Z")
		seedTask(t, s, "task-other", "other", "user-b", "2024-03-01T00:00:00Z")

		auth := bearerToken(t, "user-a", "a@x.com")
		w := doRequest(t, s, http.MethodGet, "/tasks/get", auth, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var resp taskEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if len(resp.Tasks) != 2 {
			t.Fatalf("タスク数 = %d, want 2", len(resp.Tasks))
		}
		if resp.Tasks[0].ID != "task-new" || resp.Tasks[1].ID != "task-old" {
			t.Errorf("並び順が不正: got [%s, %s], want [task-new, task-old]", resp.Tasks[0].ID, resp.Tasks[1].ID)
		}
	})

	t.Run("クエリパラメータで他ユーザーを指定しても無視されること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		seedTask(t, s, "task-other", "other", "user-b", "2024-01-01T00:00:00Z")

		// 対象ユーザーは検証済みトークンから決まる
		auth := bearerToken(t, "user-a", "a@x.com")
		w := doRequest(t, s, http.MethodGet, "/tasks/get?userId=user-b", auth, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var resp taskEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if len(resp.Tasks) != 0 {
			t.Errorf("タスク数 = %d, want 0", len(resp.Tasks))
		}
	})

	t.Run("タスクがない場合は空配列を返すこと", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		auth := bearerToken(t, "user-a", "a@x.com")
		w := doRequest(t, s, http.MethodGet, "/tasks/get", auth, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if string(raw["tasks"]) != "[]" {
			t.Errorf("tasks = %s, want []", string(raw["tasks"]))
		}
	})
}
