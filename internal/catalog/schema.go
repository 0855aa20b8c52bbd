package catalog

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS categories (
    -- カテゴリの一意識別子
    id TEXT PRIMARY KEY,
    -- カテゴリ名
    name TEXT NOT NULL UNIQUE,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS products (
    -- 商品の一意識別子
    id TEXT PRIMARY KEY,
    -- 商品名
    name TEXT NOT NULL,
    -- 価格
    price REAL NOT NULL,
    -- 在庫数
    stock INTEGER NOT NULL DEFAULT 0,
    -- 所属カテゴリのID
    category_id TEXT NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    -- 作成者（認証済みユーザーのサブジェクト）
    created_by TEXT NOT NULL,
    FOREIGN KEY (category_id) REFERENCES categories(id)
);

CREATE TABLE IF NOT EXISTS users (
    -- ユーザーの一意識別子
    id TEXT PRIMARY KEY,
    -- ユーザー名
    username TEXT NOT NULL UNIQUE,
    -- bcryptハッシュ化済みパスワード
    password_hash TEXT NOT NULL,
    -- ロール
    role TEXT NOT NULL,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- カテゴリでの絞り込みを高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_products_category_id
    ON products(category_id);

-- 商品名での部分一致検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_products_name
    ON products(name);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
