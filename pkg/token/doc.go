// Package token は署名付き識別トークンの発行と検証を提供する。
//
// トークンはサブジェクトとロールを含む自己完結型のJWT（HS256）で、
// サーバー側に状態を持たない。有効性は署名と有効期限のみで決まるため、
// 期限前の失効はできない。
package token
