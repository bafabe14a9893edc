// 認証局サービスのエントリポイント。
// パスワードの管理とベアラートークンの発行・検証を担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/taskhub/internal/auth"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server, err := auth.NewServer(port)
	if err != nil {
		log.Fatalf("Authサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Authサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Authサービスの起動に失敗: %v", err)
	}
}
