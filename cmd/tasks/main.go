// タスクリソースサービスのエントリポイント。
// タスクのCRUDと所有ユーザーごとの一覧取得を担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/taskhub/internal/tasks"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8083"
	}

	server, err := tasks.NewServer(port)
	if err != nil {
		log.Fatalf("Tasksサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Tasksサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Tasksサービスの起動に失敗: %v", err)
	}
}
