package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/catalog/pkg/token"
)

// newTestTokenService はテスト用のトークンサービスを生成する。
func newTestTokenService() *token.Service {
	return token.NewService("test-signing-key-0123456789abcdef", "catalog-api", "catalog-clients", time.Hour)
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでPrincipalがコンテキストに設定されること", func(t *testing.T) {
		t.Parallel()

		svc := newTestTokenService()
		signed, err := svc.Issue("alice", "Admin")
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		var captured *token.Principal
		router := gin.New()
		router.Use(JWTAuth(svc))
		router.GET("/test", func(c *gin.Context) {
			captured = GetPrincipal(c)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if captured == nil {
			t.Fatal("Principalがコンテキストに設定されていない")
		}
		if captured.Subject != "alice" {
			t.Errorf("Subject = %q, want %q", captured.Subject, "alice")
		}
		if captured.Role != "Admin" {
			t.Errorf("Role = %q, want %q", captured.Role, "Admin")
		}
	})

	t.Run("Authorizationヘッダーが無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(JWTAuth(newTestTokenService()))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("Bearer接頭辞が無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		svc := newTestTokenService()
		signed, err := svc.Issue("alice", "Admin")
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		router := gin.New()
		router.Use(JWTAuth(svc))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", signed) // "Bearer "接頭辞なし
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("不正なトークンの場合401が返り理由が開示されないこと", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(JWTAuth(newTestTokenService()))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer 不正なトークン")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["message"] != "トークンが無効です" {
			t.Errorf("message = %q, want %q", body["message"], "トークンが無効です")
		}
	})

	t.Run("期限切れトークンの場合401が返ること", func(t *testing.T) {
		t.Parallel()

		short := token.NewService("test-signing-key-0123456789abcdef", "catalog-api", "catalog-clients", time.Millisecond)
		signed, err := short.Issue("alice", "Admin")
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}
		time.Sleep(10 * time.Millisecond)

		router := gin.New()
		router.Use(JWTAuth(newTestTokenService()))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestRequireRole はRequireRoleミドルウェアを検証する。
func TestRequireRole(t *testing.T) {
	t.Parallel()

	// newRoleRouter はJWTAuthとRequireRoleを適用したテスト用ルーターを生成する。
	newRoleRouter := func(svc *token.Service, role string) *gin.Engine {
		router := gin.New()
		router.Use(JWTAuth(svc))
		router.Use(RequireRole(role))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	t.Run("要求ロールを持つPrincipalは通過すること", func(t *testing.T) {
		t.Parallel()

		svc := newTestTokenService()
		signed, err := svc.Issue("alice", "Admin")
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		router := newRoleRouter(svc, "Admin")
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("ロールが一致しない場合403が返ること", func(t *testing.T) {
		t.Parallel()

		svc := newTestTokenService()
		signed, err := svc.Issue("alice", "Admin")
		if err != nil {
			t.Fatalf("Issue()でエラーが発生: %v", err)
		}

		// Adminトークンでより強いロールを要求するルートにアクセスする
		router := newRoleRouter(svc, "SuperAdmin")
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("Principalが無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		// JWTAuthを適用せずRequireRoleのみを適用する
		router := gin.New()
		router.Use(RequireRole("Admin"))
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestGetPrincipal はGetPrincipal関数を検証する。
func TestGetPrincipal(t *testing.T) {
	t.Parallel()

	t.Run("未認証のコンテキストではnilを返すこと", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if p := GetPrincipal(c); p != nil {
			t.Errorf("GetPrincipal() = %+v, want nil", p)
		}
	})

	t.Run("型が不正な値が格納されている場合nilを返すこと", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("principal", "文字列")
		if p := GetPrincipal(c); p != nil {
			t.Errorf("GetPrincipal() = %+v, want nil", p)
		}
	})
}
