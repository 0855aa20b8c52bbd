// カタログサービスのエントリポイント。
// 商品・カテゴリのCRUDと、APIキー・レート制限・JWT認証・ロール認可からなる
// リクエスト処理チェーンを提供する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/catalog/internal/catalog"
	"github.com/nao1215/catalog/pkg/config"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := catalog.NewServer(cfg)
	if err != nil {
		log.Fatalf("カタログサーバーの初期化に失敗: %v", err)
	}

	log.Printf("カタログサービスを起動します: :%s", cfg.Server.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("カタログサービスの起動に失敗: %v", err)
	}
}
