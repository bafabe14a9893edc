package gateway

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// healthProbeTimeout はバックエンド1つあたりのヘルスチェックタイムアウト。
const healthProbeTimeout = 5 * time.Second

// serviceHealth はバックエンドサービスが返すヘルスチェックレスポンス。
type serviceHealth struct {
	// Status はサービス自身が報告する状態。
	Status string `json:"status"`
}

// handleHealth は全バックエンドのヘルスチェックを集約するハンドラを返す。
// 各サービスへのプローブは並行して行い、失敗は互いに波及しない。
// 1つでも失敗すれば該当サービスは "error"、全体は "failed" になる。
// バックエンドが全滅していてもこのエンドポイント自体は200で応答する。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var mu sync.Mutex
		var wg sync.WaitGroup

		status := "ok"
		services := make(map[string]string, len(s.healthClients))

		for name, client := range s.healthClients {
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
				defer cancel()

				var health serviceHealth
				err := client.GetJSON(ctx, "/health", &health)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					services[name] = "error"
					status = "failed"
					log.Printf("ヘルスチェック失敗: service=%s, error=%v", name, err)
					return
				}
				services[name] = health.Status
			}()
		}
		wg.Wait()

		c.JSON(http.StatusOK, gin.H{
			"status":   status,
			"services": services,
		})
	}
}
