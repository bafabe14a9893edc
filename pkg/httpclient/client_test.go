package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestNew はクライアントの生成を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("ベースURLとタイムアウトが設定されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://auth:8081")
		if client.baseURL != "http://auth:8081" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://auth:8081")
		}
		if client.httpClient.Timeout != defaultTimeout {
			t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, defaultTimeout)
		}
	})
}

// TestPostJSON はJSON POSTリクエストを検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("リクエストとレスポンスのJSON変換が行われること", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("メソッド = %q, want %q", r.Method, http.MethodPost)
			}
			if got := r.Header.Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q, want %q", got, "application/json")
			}

			var req map[string]string
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("リクエストボディのパースに失敗: %v", err)
			}
			if req["name"] != "value" {
				t.Errorf("name = %q, want %q", req["name"], "value")
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"created"}`))
		}))
		defer server.Close()

		client := New(server.URL)
		var result map[string]string
		if err := client.PostJSON(context.Background(), "/items", map[string]string{"name": "value"}, &result); err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
		if result["status"] != "created" {
			t.Errorf("status = %q, want %q", result["status"], "created")
		}
	})

	t.Run("2xx以外のステータスでStatusErrorを返すこと", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
		}))
		defer server.Close()

		client := New(server.URL)
		err := client.PostJSON(context.Background(), "/verify", map[string]string{"token": "bad"}, nil)
		if err == nil {
			t.Fatal("エラーが返されなかった")
		}

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("StatusErrorではないエラーが返された: %v", err)
		}
		if statusErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusUnauthorized)
		}
		if string(statusErr.Body) != `{"error":"Invalid token"}` {
			t.Errorf("Body = %q, want %q", string(statusErr.Body), `{"error":"Invalid token"}`)
		}
	})
}

// TestGetJSON はJSON GETリクエストを検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("レスポンスがデシリアライズされること", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("メソッド = %q, want %q", r.Method, http.MethodGet)
			}
			if r.URL.Path != "/health" {
				t.Errorf("パス = %q, want %q", r.URL.Path, "/health")
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))
		defer server.Close()

		client := New(server.URL)
		var result map[string]string
		if err := client.GetJSON(context.Background(), "/health", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if result["status"] != "ok" {
			t.Errorf("status = %q, want %q", result["status"], "ok")
		}
	})

	t.Run("接続できない場合はエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		url := server.URL
		server.Close()

		client := New(url)
		var result map[string]string
		if err := client.GetJSON(context.Background(), "/health", &result); err == nil {
			t.Error("停止済みサーバーへのリクエストが成功した")
		}
	})

	t.Run("コンテキストのキャンセルでリクエストが中断されること", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := New(server.URL)
		if err := client.GetJSON(ctx, "/health", nil); err == nil {
			t.Error("キャンセル済みコンテキストのリクエストが成功した")
		}
	})
}
