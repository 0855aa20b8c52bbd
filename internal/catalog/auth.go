package catalog

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/catalog/pkg/token"
)

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Username はユーザー名。
	Username string `json:"username" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// handleLogin はログインを処理するハンドラを返す。
//
// 認証に成功した場合、サブジェクトとロールを埋め込んだ識別トークンを発行する。
// 失敗時はユーザー名とパスワードのどちらが誤っていたかを開示しない。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "usernameとpasswordは必須です"})
			return
		}

		user, err := s.queries.GetUserByUsername(c.Request.Context(), req.Username)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "ユーザー名またはパスワードが不正です"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "ユーザー名またはパスワードが不正です"})
			return
		}

		signed, err := s.tokenService.Issue(user.Username, user.Role)
		if errors.Is(err, token.ErrKeyTooShort) {
			// 弱い鍵でトークンを発行してはならない。設定不備として報告する。
			log.Printf("トークン発行を拒否: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"statusCode": http.StatusInternalServerError,
				"message":    "サーバーの設定に不備があります。",
				"details":    "トークン署名鍵が短すぎます",
			})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": signed})
	}
}

// seedUsers はユーザーテーブルが空の場合に開発用アカウントを作成する。
// admin/password（Admin）とuser/12345（User）の2件。本番では投入前に削除すること。
func seedUsers(queries *Queries) error {
	ctx := context.Background()

	count, err := queries.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seeds := []struct {
		username string
		password string
		role     string
	}{
		{username: "admin", password: "password", role: RoleAdmin},
		{username: "user", password: "12345", role: "User"},
	}

	for _, seed := range seeds {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if err := queries.CreateUser(ctx, CreateUserParams{
			ID:           uuid.New().String(),
			Username:     seed.username,
			PasswordHash: string(hash),
			Role:         seed.role,
		}); err != nil {
			return err
		}
		log.Printf("開発用ユーザーを作成しました: %s (%s)", seed.username, seed.role)
	}
	return nil
}
