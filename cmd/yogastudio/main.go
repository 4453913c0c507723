// Command yogastudio はヨガ教室のセッション予約APIを起動する。
//
// サブコマンド:
//
//	serve        APIサーバー（デフォルト）
//	worker       古いセッションの定期削除
//	migrate      データベースマイグレーション（up | down [N] | version）
//	healthcheck  /health を呼び出して終了コードで結果を返す
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/yogastudio/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "yogastudio: %v\n", err)
		os.Exit(1)
	}
}
