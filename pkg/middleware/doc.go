// Package middleware はリクエスト処理チェーンを構成するGinミドルウェアを提供する。
//
// チェーンは固定の順序を持つ: パニックリカバリ（最外周）→ APIキーゲート →
// レート制限 → リクエストログ → 認証・認可エラーの整形 → トークン検証 →
// ロール認可。APIキーゲートがトークン検証より先、トークン検証がロール認可
// より先にあることに正しさが依存しているため、順序を入れ替えてはならない。
package middleware
