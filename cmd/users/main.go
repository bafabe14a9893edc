// ユーザーリソースサービスのエントリポイント。
// ユーザープロフィールのCRUDを担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/taskhub/internal/users"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server, err := users.NewServer(port)
	if err != nil {
		log.Fatalf("Usersサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Usersサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Usersサービスの起動に失敗: %v", err)
	}
}
