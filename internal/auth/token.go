package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrEmptySecret は署名鍵が未設定であることを示す。
var ErrEmptySecret = errors.New("jwt secret must not be empty")

// TokenConfig はトークンサービスの設定。
type TokenConfig struct {
	Secret string
	// Validity はトークンの有効期間。負の値を指定すると発行時点で期限切れになる。
	Validity time.Duration
	Issuer   string
}

// TokenService は署名付きの認証トークンを発行・検証する。
// トークンはHS512で署名したJWTで、subjectにプリンシパルのメールアドレスを持つ。
type TokenService struct {
	secret   []byte
	validity time.Duration
	issuer   string
	now      func() time.Time
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, ErrEmptySecret
	}
	return &TokenService{
		secret:   []byte(cfg.Secret),
		validity: cfg.Validity,
		issuer:   cfg.Issuer,
		now:      time.Now,
	}, nil
}

// Issue はprincipalをsubjectとするトークンを発行する。
// 有効期限は発行時刻に設定済みの有効期間を加えた時刻。
func (s *TokenService) Issue(principal string) (string, error) {
	issuedAt := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   principal,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.validity)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate は署名・構造・有効期限がすべて正しい場合のみtrueを返す。
// 空文字列や改ざん、期限切れのトークンではfalseを返し、panicしない。
func (s *TokenService) Validate(token string) bool {
	_, err := s.parse(token)
	return err == nil
}

// ExtractPrincipal はトークンのsubjectを返す。
// 呼び出し側でValidate済みであることを前提とし、無効なトークンには空文字列を返す。
func (s *TokenService) ExtractPrincipal(token string) string {
	claims, err := s.parse(token)
	if err != nil {
		return ""
	}
	return claims.Subject
}

func (s *TokenService) parse(token string) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, jwt.ErrTokenMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	// 有効期限は検証時刻より厳密に未来でなければならない
	if !claims.ExpiresAt.Time.After(s.now()) {
		return nil, jwt.ErrTokenExpired
	}
	return claims, nil
}
