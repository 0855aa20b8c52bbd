package catalog

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// Queries はカタログデータベースへのクエリ実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// NewQueries は新しいクエリ実行オブジェクトを生成する。
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// Product は商品のDB行。カテゴリ名を結合して保持する。
type Product struct {
	// ID は商品の一意識別子。
	ID string
	// Name は商品名。
	Name string
	// Price は価格。
	Price float64
	// Stock は在庫数。
	Stock int64
	// CategoryID は所属カテゴリのID。
	CategoryID string
	// CategoryName は所属カテゴリの名前。
	CategoryName string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// CreatedBy は作成者（認証済みユーザーのサブジェクト）。
	CreatedBy string
}

// Category はカテゴリのDB行。
type Category struct {
	// ID はカテゴリの一意識別子。
	ID string
	// Name はカテゴリ名。
	Name string
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// User はユーザーのDB行。
type User struct {
	// ID はユーザーの一意識別子。
	ID string
	// Username はユーザー名。
	Username string
	// PasswordHash はbcryptハッシュ化済みパスワード。
	PasswordHash string
	// Role はロール。
	Role string
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// productColumns は商品取得クエリで共通のSELECT句。
const productColumns = `
SELECT p.id, p.name, p.price, p.stock, p.category_id, c.name, p.created_at, p.created_by
FROM products p
JOIN categories c ON c.id = p.category_id
`

// scanProduct は1行をProductに読み取る。
func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CategoryID, &p.CategoryName, &p.CreatedAt, &p.CreatedBy)
	return p, err
}

// CreateProductParams は商品作成のパラメータ。
type CreateProductParams struct {
	ID         string
	Name       string
	Price      float64
	Stock      int64
	CategoryID string
	CreatedBy  string
}

// CreateProduct は商品を作成する。
func (q *Queries) CreateProduct(ctx context.Context, params CreateProductParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price, stock, category_id, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		params.ID, params.Name, params.Price, params.Stock, params.CategoryID, params.CreatedBy,
	)
	return err
}

// GetProductByID は指定IDの商品を取得する。
// 存在しない場合はsql.ErrNoRowsを返す。
func (q *Queries) GetProductByID(ctx context.Context, id string) (Product, error) {
	row := q.db.QueryRowContext(ctx, productColumns+`WHERE p.id = ?`, id)
	return scanProduct(row)
}

// ListProducts は全商品を作成日時の降順で取得する。
func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.QueryContext(ctx, productColumns+`ORDER BY p.created_at DESC, p.id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// SearchProductsParams は商品検索の絞り込み条件。nilの条件は無視する。
type SearchProductsParams struct {
	// Name は商品名の部分一致条件。
	Name *string
	// MinPrice は価格の下限。
	MinPrice *float64
	// MaxPrice は価格の上限。
	MaxPrice *float64
	// CategoryID は所属カテゴリの完全一致条件。
	CategoryID *string
}

// SearchProducts は条件に一致する商品を取得する。
func (q *Queries) SearchProducts(ctx context.Context, params SearchProductsParams) ([]Product, error) {
	var conds []string
	var args []any

	if params.Name != nil {
		conds = append(conds, "p.name LIKE ?")
		args = append(args, "%"+*params.Name+"%")
	}
	if params.MinPrice != nil {
		conds = append(conds, "p.price >= ?")
		args = append(args, *params.MinPrice)
	}
	if params.MaxPrice != nil {
		conds = append(conds, "p.price <= ?")
		args = append(args, *params.MaxPrice)
	}
	if params.CategoryID != nil {
		conds = append(conds, "p.category_id = ?")
		args = append(args, *params.CategoryID)
	}

	query := productColumns
	if len(conds) > 0 {
		query += "WHERE " + strings.Join(conds, " AND ") + "\n"
	}
	query += "ORDER BY p.created_at DESC, p.id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProductParams は商品更新のパラメータ。
type UpdateProductParams struct {
	ID         string
	Name       string
	Price      float64
	Stock      int64
	CategoryID string
}

// UpdateProduct は商品を更新する。
func (q *Queries) UpdateProduct(ctx context.Context, params UpdateProductParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE products SET name = ?, price = ?, stock = ?, category_id = ? WHERE id = ?`,
		params.Name, params.Price, params.Stock, params.CategoryID, params.ID,
	)
	return err
}

// DeleteProduct は商品を削除する。削除した行数を返す。
func (q *Queries) DeleteProduct(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CreateCategoryParams はカテゴリ作成のパラメータ。
type CreateCategoryParams struct {
	ID   string
	Name string
}

// CreateCategory はカテゴリを作成する。
func (q *Queries) CreateCategory(ctx context.Context, params CreateCategoryParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (id, name) VALUES (?, ?)`,
		params.ID, params.Name,
	)
	return err
}

// GetCategoryByID は指定IDのカテゴリを取得する。
// 存在しない場合はsql.ErrNoRowsを返す。
func (q *Queries) GetCategoryByID(ctx context.Context, id string) (Category, error) {
	var c Category
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt)
	return c, err
}

// ListCategories は全カテゴリを名前順で取得する。
func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateUserParams はユーザー作成のパラメータ。
type CreateUserParams struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
}

// CreateUser はユーザーを作成する。
func (q *Queries) CreateUser(ctx context.Context, params CreateUserParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role) VALUES (?, ?, ?, ?)`,
		params.ID, params.Username, params.PasswordHash, params.Role,
	)
	return err
}

// GetUserByUsername は指定ユーザー名のユーザーを取得する。
// 存在しない場合はsql.ErrNoRowsを返す。
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

// CountUsers はユーザー数を返す。
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
