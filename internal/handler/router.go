package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/yogastudio/internal/metrics"
	"github.com/hitoshi/yogastudio/internal/middleware"
)

// HealthChecker はストアの疎通確認を行う。
type HealthChecker interface {
	Check(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector
	MetricsHandler     http.Handler
	PrincipalResolver  middleware.PrincipalResolver
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	HealthChecker      HealthChecker

	// サービス
	AuthService    AuthServiceInterface
	SessionService SessionServiceInterface
	TeacherService TeacherServiceInterface
	UserService    UserServiceInterface
}

// healthCheckTimeout はヘルスチェックでストアに問い合わせる際のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Recovery → Logging → SecurityHeaders → CORS
//	  → (認証が必要なルートのみ) Auth → RateLimit(General)
//
// /api/auth/*、/health、/metrics は認証なしで公開する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	authHandler := NewAuthHandler(deps.AuthService)
	sessionHandler := NewSessionHandler(deps.SessionService)
	teacherHandler := NewTeacherHandler(deps.TeacherService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// ログイン・登録（クライアントIPごとのレート制限）
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.LoginMiddleware())
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.PrincipalResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		sessionRoutes := func(r chi.Router) {
			r.Get("/", sessionHandler.List)
			r.Post("/", sessionHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Put("/", sessionHandler.Update)
				r.Delete("/", sessionHandler.Delete)

				r.Post("/participate/{userId}", sessionHandler.Participate)
				r.Delete("/participate/{userId}", sessionHandler.Unparticipate)
			})
		}
		r.Route("/api/session", sessionRoutes)
		r.Route("/api/sessions", sessionRoutes)

		r.Route("/api/teacher", func(r chi.Router) {
			r.Get("/", teacherHandler.List)
			r.Get("/{id}", teacherHandler.Get)
		})

		r.Route("/api/user/{id}", func(r chi.Router) {
			r.Get("/", userHandler.Get)
			r.Delete("/", userHandler.Delete)
		})
	})

	return r
}

// healthHandler はストアに疎通確認し、結果をJSONで返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.Check(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
