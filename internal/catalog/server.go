package catalog

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/catalog/pkg/config"
	"github.com/nao1215/catalog/pkg/middleware"
	"github.com/nao1215/catalog/pkg/ratelimit"
	"github.com/nao1215/catalog/pkg/token"
)

// RoleAdmin は商品の作成・更新・削除を許可するロール。
const RoleAdmin = "Admin"

// Server はカタログサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はカタログデータベースへのクエリ実行オブジェクト。
	queries *Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// tokenService は識別トークンの発行・検証サービス。
	tokenService *token.Service
	// limiter はクライアント単位のレートリミッター。
	limiter *ratelimit.Limiter
	// apiKey は全リクエストに要求する共有シークレット。
	apiKey string
}

// NewServer は新しいカタログサーバーを生成する。
// SQLiteデータベースの初期化、スキーマ作成、開発用ユーザーのシードを行う。
func NewServer(cfg config.Config) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.Database.Path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	queries := NewQueries(sqlDB)
	if err := seedUsers(queries); err != nil {
		return nil, fmt.Errorf("開発用ユーザーのシードに失敗: %w", err)
	}

	s := &Server{
		router:       gin.New(),
		port:         cfg.Server.Port,
		queries:      queries,
		db:           sqlDB,
		tokenService: token.NewService(cfg.JWT.Key, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TTL()),
		limiter:      ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window()),
		apiKey:       cfg.APIKey,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はミドルウェアチェーンとAPIルーティングを設定する。
//
// チェーンの順序は固定: リカバリ（最外周）→ APIキーゲート → レート制限 →
// リクエストログ → 認証・認可エラーの整形。トークン検証とロール認可は
// 保護対象のルートにのみ適用する。
func (s *Server) setupRoutes() {
	// ヘルスチェックはゲートの外に置く。チェーン適用前に登録すること。
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "catalog"})
	})

	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.APIKey(s.apiKey))
	s.router.Use(middleware.RateLimit(s.limiter))
	s.router.Use(gin.Logger())
	s.router.Use(middleware.AuthErrorShaper())

	api := s.router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			// ログイン（トークン発行）
			auth.POST("/login", s.handleLogin())
		}

		// 読み取り系はAPIキーとレート制限のみで保護する
		api.GET("/categories", s.handleListCategories())

		products := api.Group("/products")
		{
			// 商品一覧取得
			products.GET("", s.handleListProducts())
			// 商品検索
			products.GET("/search", s.handleSearchProducts())
			// 商品詳細取得
			products.GET("/:id", s.handleGetProductByID())
		}

		// 書き込み系はAdminロールを要求する
		admin := api.Group("")
		admin.Use(middleware.JWTAuth(s.tokenService))
		admin.Use(middleware.RequireRole(RoleAdmin))
		{
			// 商品作成
			admin.POST("/products", s.handleCreateProduct())
			// 商品更新
			admin.PUT("/products/:id", s.handleUpdateProduct())
			// 商品削除
			admin.DELETE("/products/:id", s.handleDeleteProduct())
			// カテゴリ作成
			admin.POST("/categories", s.handleCreateCategory())
			// 認証・認可の疎通確認
			admin.GET("/protected", s.handleProtected())
		}
	}
}

// createProductRequest は商品作成・更新リクエストのJSON構造。
type createProductRequest struct {
	// Name は商品名。最大100文字。
	Name string `json:"name" binding:"required,max=100"`
	// Price は価格。0より大きいこと。
	Price float64 `json:"price" binding:"required,gt=0"`
	// Stock は在庫数。0以上であること。
	Stock int64 `json:"stock" binding:"gte=0"`
	// CategoryID は所属カテゴリのID。
	CategoryID string `json:"category_id" binding:"required"`
}

// createCategoryRequest はカテゴリ作成リクエストのJSON構造。
type createCategoryRequest struct {
	// Name はカテゴリ名。
	Name string `json:"name" binding:"required,max=100"`
}

// productResponse は商品のJSONレスポンス構造。
type productResponse struct {
	// ID は商品の一意識別子。
	ID string `json:"id"`
	// Name は商品名。
	Name string `json:"name"`
	// Price は価格。
	Price float64 `json:"price"`
	// Stock は在庫数。
	Stock int64 `json:"stock"`
	// CategoryID は所属カテゴリのID。
	CategoryID string `json:"category_id"`
	// CategoryName は所属カテゴリの名前。
	CategoryName string `json:"category_name"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// CreatedBy は作成者。
	CreatedBy string `json:"created_by"`
}

// categoryResponse はカテゴリのJSONレスポンス構造。
type categoryResponse struct {
	// ID はカテゴリの一意識別子。
	ID string `json:"id"`
	// Name はカテゴリ名。
	Name string `json:"name"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
}

// toProductResponse はDB行をJSONレスポンスに変換する。
func toProductResponse(p Product) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Price:        p.Price,
		Stock:        p.Stock,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		CreatedAt:    p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		CreatedBy:    p.CreatedBy,
	}
}

// toCategoryResponse はDB行をJSONレスポンスに変換する。
func toCategoryResponse(c Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// handleListProducts は商品一覧取得を処理するハンドラを返す。
func (s *Server) handleListProducts() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := s.queries.ListProducts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "商品一覧の取得に失敗しました"})
			log.Printf("商品一覧取得エラー: %v", err)
			return
		}

		responses := make([]productResponse, 0, len(products))
		for _, p := range products {
			responses = append(responses, toProductResponse(p))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleGetProductByID は商品詳細取得を処理するハンドラを返す。
func (s *Server) handleGetProductByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Param("id")
		p, err := s.queries.GetProductByID(c.Request.Context(), productID)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"message": "商品が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toProductResponse(p))
	}
}

// handleSearchProducts は商品検索を処理するハンドラを返す。
// name、min_price、max_price、category_idのクエリパラメータで絞り込む。
func (s *Server) handleSearchProducts() gin.HandlerFunc {
	return func(c *gin.Context) {
		var params SearchProductsParams

		if name := c.Query("name"); name != "" {
			params.Name = &name
		}
		if v := c.Query("min_price"); v != "" {
			minPrice, err := strconv.ParseFloat(v, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"message": "min_priceが数値ではありません"})
				return
			}
			params.MinPrice = &minPrice
		}
		if v := c.Query("max_price"); v != "" {
			maxPrice, err := strconv.ParseFloat(v, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"message": "max_priceが数値ではありません"})
				return
			}
			params.MaxPrice = &maxPrice
		}
		if categoryID := c.Query("category_id"); categoryID != "" {
			params.CategoryID = &categoryID
		}

		products, err := s.queries.SearchProducts(c.Request.Context(), params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "商品の検索に失敗しました"})
			log.Printf("商品検索エラー: %v", err)
			return
		}

		responses := make([]productResponse, 0, len(products))
		for _, p := range products {
			responses = append(responses, toProductResponse(p))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleCreateProduct は商品作成を処理するハンドラを返す。
// 作成者には認証済みユーザーのサブジェクトを記録する。
func (s *Server) handleCreateProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := middleware.GetPrincipal(c)
		if principal == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "認証されていません"})
			return
		}

		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		// カテゴリの存在確認
		if _, err := s.queries.GetCategoryByID(c.Request.Context(), req.CategoryID); err == sql.ErrNoRows {
			c.JSON(http.StatusBadRequest, gin.H{"message": "指定されたカテゴリが存在しません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "カテゴリの取得に失敗しました"})
			log.Printf("カテゴリ取得エラー: %v", err)
			return
		}

		productID := uuid.New().String()
		if err := s.queries.CreateProduct(c.Request.Context(), CreateProductParams{
			ID:         productID,
			Name:       req.Name,
			Price:      req.Price,
			Stock:      req.Stock,
			CategoryID: req.CategoryID,
			CreatedBy:  principal.Subject,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "商品の作成に失敗しました"})
			log.Printf("商品作成エラー: %v", err)
			return
		}

		created, err := s.queries.GetProductByID(c.Request.Context(), productID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "作成した商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toProductResponse(created))
	}
}

// handleUpdateProduct は商品更新を処理するハンドラを返す。
func (s *Server) handleUpdateProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Param("id")

		// 商品の存在確認
		if _, err := s.queries.GetProductByID(c.Request.Context(), productID); err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"message": "商品が見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		// カテゴリの存在確認
		if _, err := s.queries.GetCategoryByID(c.Request.Context(), req.CategoryID); err == sql.ErrNoRows {
			c.JSON(http.StatusBadRequest, gin.H{"message": "指定されたカテゴリが存在しません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "カテゴリの取得に失敗しました"})
			log.Printf("カテゴリ取得エラー: %v", err)
			return
		}

		if err := s.queries.UpdateProduct(c.Request.Context(), UpdateProductParams{
			ID:         productID,
			Name:       req.Name,
			Price:      req.Price,
			Stock:      req.Stock,
			CategoryID: req.CategoryID,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "商品の更新に失敗しました"})
			log.Printf("商品更新エラー: %v", err)
			return
		}

		updated, err := s.queries.GetProductByID(c.Request.Context(), productID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "更新後の商品の取得に失敗しました"})
			log.Printf("商品取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toProductResponse(updated))
	}
}

// handleDeleteProduct は商品削除を処理するハンドラを返す。
func (s *Server) handleDeleteProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Param("id")

		affected, err := s.queries.DeleteProduct(c.Request.Context(), productID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "商品の削除に失敗しました"})
			log.Printf("商品削除エラー: %v", err)
			return
		}
		if affected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"message": "商品が見つかりません"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "商品を削除しました"})
	}
}

// handleListCategories はカテゴリ一覧取得を処理するハンドラを返す。
func (s *Server) handleListCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := s.queries.ListCategories(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "カテゴリ一覧の取得に失敗しました"})
			log.Printf("カテゴリ一覧取得エラー: %v", err)
			return
		}

		responses := make([]categoryResponse, 0, len(categories))
		for _, cat := range categories {
			responses = append(responses, toCategoryResponse(cat))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleCreateCategory はカテゴリ作成を処理するハンドラを返す。
func (s *Server) handleCreateCategory() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		categoryID := uuid.New().String()
		if err := s.queries.CreateCategory(c.Request.Context(), CreateCategoryParams{
			ID:   categoryID,
			Name: req.Name,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "カテゴリの作成に失敗しました"})
			log.Printf("カテゴリ作成エラー: %v", err)
			return
		}

		created, err := s.queries.GetCategoryByID(c.Request.Context(), categoryID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "作成したカテゴリの取得に失敗しました"})
			log.Printf("カテゴリ取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toCategoryResponse(created))
	}
}

// handleProtected は認証・認可の疎通確認ハンドラを返す。
// Adminロールで到達できることを確認するための診断用エンドポイント。
func (s *Server) handleProtected() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := middleware.GetPrincipal(c)
		if principal == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "認証されていません"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "このエンドポイントへのアクセス権があります",
			"subject": principal.Subject,
			"role":    principal.Role,
		})
	}
}
