// Package catalog は商品カタログAPIのHTTPサーバーを提供する。
//
// すべてのリクエストは業務ロジックの前に固定順序のミドルウェアチェーン
// （リカバリ → APIキーゲート → レート制限 → ログ → エラー整形 →
// トークン検証 → ロール認可）を通過する。
package catalog
