// API Gatewayサービスのエントリポイント。
// 外部からアクセス可能な唯一のサービスであり、トークン検証の委譲と
// バックエンドサービスへのルーティングを担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/taskhub/internal/gateway"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server, err := gateway.NewServer(port)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Gatewayサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
