package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minKeyLength はHMAC署名鍵に要求する最小バイト数。
// これより短い鍵で署名したトークンは総当たりに弱いため発行を拒否する。
const minKeyLength = 32

// 検証失敗の理由を表すセンチネルエラー。
// いずれも想定内の拒否であり、呼び出し元はerrors.Isで判別できる。
var (
	// ErrKeyTooShort は署名鍵が短すぎる場合の設定エラー。
	// 発行時に検出し、弱い鍵でトークンを発行してしまうことを防ぐ。
	ErrKeyTooShort = errors.New("署名鍵は32バイト以上でなければなりません")
	// ErrMalformed はトークンの構造が不正な場合の拒否。
	ErrMalformed = errors.New("トークンの形式が不正です")
	// ErrSignature は署名検証に失敗した場合の拒否。
	ErrSignature = errors.New("トークンの署名が不正です")
	// ErrIssuer は発行者クレームが一致しない場合の拒否。
	ErrIssuer = errors.New("トークンの発行者が一致しません")
	// ErrAudience は対象者クレームが一致しない場合の拒否。
	ErrAudience = errors.New("トークンの対象者が一致しません")
	// ErrExpired はトークンの有効期限が切れている場合の拒否。
	ErrExpired = errors.New("トークンの有効期限が切れています")
)

// Claims は識別トークンのクレーム（ペイロード）を表す。
// サブジェクトとロールをミドルウェアチェーンに伝播するために使用する。
type Claims struct {
	jwt.RegisteredClaims
	// Role は認証済みユーザーのロール。
	Role string `json:"role"`
}

// Principal は検証済みトークンから導出した認証済みアイデンティティ。
// 1リクエストの間だけ有効で、認可ステージとハンドラが参照する。
type Principal struct {
	// Subject はユーザーの識別子（ユーザー名）。
	Subject string
	// Role はユーザーのロール。
	Role string
}

// Service は識別トークンの発行と検証を行う。
// 発行者と検証者が同一プロセスのため、対称鍵（HS256）で署名する。
// 状態を持たず、生成後の全フィールドは読み取り専用なので並行利用できる。
type Service struct {
	// signingKey はHMAC署名用の秘密鍵。
	signingKey []byte
	// issuer はissクレームに設定する発行者名。
	issuer string
	// audience はaudクレームに設定する対象者名。
	audience string
	// ttl はトークンの有効期間。
	ttl time.Duration
}

// NewService は新しいトークンサービスを生成する。
// 鍵長の検査は発行時に行うため、ここでは失敗しない。
func NewService(signingKey, issuer, audience string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}
}

// Issue はサブジェクトとロールを埋め込んだ署名付きトークンを発行する。
// 署名鍵が32バイト未満の場合はErrKeyTooShortを返し、トークンを発行しない。
func (s *Service) Issue(subject, role string) (string, error) {
	if len(s.signingKey) < minKeyLength {
		return "", fmt.Errorf("トークンを発行できません: %w", ErrKeyTooShort)
	}
	if s.ttl <= 0 {
		return "", fmt.Errorf("トークンを発行できません: 有効期間が不正です (%v)", s.ttl)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークン文字列を検証し、成功時はPrincipalを返す。
// 構造、署名、発行者、対象者、有効期限の順に検査し、
// 失敗はセンチネルエラーにラップして返す。副作用は持たない。
func (s *Service) Verify(tokenString string) (*Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", rejectionReason(err))
	}
	if !token.Valid {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", ErrSignature)
	}

	return &Principal{
		Subject: claims.Subject,
		Role:    claims.Role,
	}, nil
}

// rejectionReason はjwtライブラリのエラーを本パッケージの拒否理由に対応付ける。
// 期限切れは署名エラーより優先して報告する。
func rejectionReason(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudience
	default:
		return ErrMalformed
	}
}
