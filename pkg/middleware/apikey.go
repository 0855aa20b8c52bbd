package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// headerKeyAPIKey は共有シークレットを運ぶHTTPヘッダーのキー。
const headerKeyAPIKey = "X-Api-Key"

// APIKey はX-Api-Keyヘッダーを共有シークレットと照合するGinミドルウェアを返す。
//
// ここは信頼境界の最外周であり、認証・認可・業務ロジックより前に置く。
// 判定は3通り: シークレット未設定はサーバー側の設定不備として500、
// ヘッダー欠落と値の不一致はいずれも401。すべて後続ステージを実行しない。
func APIKey(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			log.Printf("[APIKey] 共有シークレットが設定されていません")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"statusCode": http.StatusInternalServerError,
				"message":    "サーバーの設定に不備があります。",
				"details":    "APIキーが設定されていません",
			})
			return
		}

		supplied := c.GetHeader(headerKeyAPIKey)
		if supplied == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "認証に失敗しました。APIキーが必要です。",
			})
			return
		}

		// タイミング攻撃でシークレットを推測されないよう定数時間で比較する
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "認証に失敗しました。APIキーが不正です。",
			})
			return
		}

		c.Next()
	}
}
