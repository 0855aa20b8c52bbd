package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/catalog/pkg/ratelimit"
)

// TestRateLimit はRateLimitミドルウェアを検証する。
func TestRateLimit(t *testing.T) {
	t.Parallel()

	// newLimitedRouter はレート制限を適用したテスト用ルーターを生成する。
	newLimitedRouter := func(maxRequests int, window time.Duration) *gin.Engine {
		router := gin.New()
		router.Use(RateLimit(ratelimit.New(maxRequests, window)))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	t.Run("上限以内のリクエストは200が返ること", func(t *testing.T) {
		t.Parallel()

		router := newLimitedRouter(3, 10*time.Second)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("%d番目のステータスコード = %d, want %d", i+1, w.Code, http.StatusOK)
			}
		}
	})

	t.Run("上限超過で429とRetry-Afterヘッダーが返ること", func(t *testing.T) {
		t.Parallel()

		router := newLimitedRouter(3, 10*time.Second)
		for n := 0; n < 3; n++ {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			router.ServeHTTP(httptest.NewRecorder(), req)
		}

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusTooManyRequests {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusTooManyRequests)
		}
		if got := w.Header().Get("Retry-After"); got != "10" {
			t.Errorf("Retry-After = %q, want %q", got, "10")
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["message"] == "" {
			t.Error("messageフィールドが空")
		}
	})

	t.Run("拒否時に後続ハンドラが実行されないこと", func(t *testing.T) {
		t.Parallel()

		handlerCalls := 0
		router := gin.New()
		router.Use(RateLimit(ratelimit.New(1, 10*time.Second)))
		router.GET("/test", func(c *gin.Context) {
			handlerCalls++
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		for n := 0; n < 3; n++ {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			router.ServeHTTP(httptest.NewRecorder(), req)
		}

		if handlerCalls != 1 {
			t.Errorf("ハンドラの実行回数 = %d, want 1", handlerCalls)
		}
	})
}
