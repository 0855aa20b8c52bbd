// Package ratelimit はクライアント単位の固定ウィンドウ方式レート制限を提供する。
//
// 状態はプロセス内メモリのみに持ち、インスタンス間で共有しない。
// 分散レート制限が必要な場合は外部ストアを使う別実装が必要になる。
package ratelimit
