// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/yogastudio/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// principalContextKey はリクエストコンテキストに認証済みプリンシパルを格納するためのキー。
	principalContextKey = contextKey("principal")
	// requestIDContextKey はリクエストIDを格納するためのキー。
	requestIDContextKey = contextKey("request_id")
)

const bearerPrefix = "Bearer "

// PrincipalResolver はトークンからプリンシパルを解決するインターフェース。
// auth.Serviceが実装する。
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, token string) (*model.Principal, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 検証済みのプリンシパルをリクエストコンテキストに注入する。
// トークンがない、または無効な場合は後続のハンドラーを呼ばずに401を返す。
func NewAuthMiddleware(resolver PrincipalResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			principal, err := resolver.ResolvePrincipal(r.Context(), token)
			if err != nil {
				if model.IsKind(err, model.KindUnauthorized) {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
					return
				}
				slog.Error("failed to resolve principal",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), *principal)))
		})
	}
}

// bearerToken はAuthorizationヘッダーからトークン部分を取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	return token, token != ""
}

// PrincipalFromContext はリクエストコンテキストからプリンシパルを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (model.Principal, error) {
	p, ok := ctx.Value(principalContextKey).(model.Principal)
	if !ok || p.Email == "" {
		return model.Principal{}, fmt.Errorf("principal not found in context")
	}
	return p, nil
}

// ContextWithPrincipal はコンテキストにプリンシパルを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
// ログミドルウェアの配下であれば、アクセスログ用にユーザーIDも記録する。
func ContextWithPrincipal(ctx context.Context, p model.Principal) context.Context {
	if slot, ok := ctx.Value(principalSlotContextKey).(*principalSlot); ok {
		slot.userID = p.ID
	}
	return context.WithValue(ctx, principalContextKey, p)
}
