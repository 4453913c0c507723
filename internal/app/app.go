// Package app はサブコマンドごとの起動処理と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/yogastudio/internal/auth"
	"github.com/hitoshi/yogastudio/internal/config"
	"github.com/hitoshi/yogastudio/internal/database"
	"github.com/hitoshi/yogastudio/internal/handler"
	"github.com/hitoshi/yogastudio/internal/logger"
	"github.com/hitoshi/yogastudio/internal/metrics"
	"github.com/hitoshi/yogastudio/internal/middleware"
	"github.com/hitoshi/yogastudio/internal/model"
	"github.com/hitoshi/yogastudio/internal/repository"
	"github.com/hitoshi/yogastudio/internal/security"
	"github.com/hitoshi/yogastudio/internal/session"
	"github.com/hitoshi/yogastudio/internal/teacher"
	"github.com/hitoshi/yogastudio/internal/user"
	"github.com/hitoshi/yogastudio/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数（と.env）でConfigを読み込み、ログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("invalid LOG_LEVEL, falling back to info", slog.String("error", err.Error()))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	inv, err := ParseArgs(args)
	if err != nil {
		return err
	}
	cmd := inv.Command

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("port", cfg.ServerPort),
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg, inv.Migrate)
	default:
		return runServe(ctx, cfg)
	}
}

// stores はストア種別に応じて組み立てたリポジトリ群。
type stores struct {
	users    repository.UserRepository
	teachers repository.TeacherRepository
	sessions repository.SessionRepository
	health   handler.HealthChecker
	close    func() error
}

// defaultTeachers はインメモリストアに初期登録する講師。マイグレーションの初期データと同じ。
var defaultTeachers = []model.Teacher{
	{FirstName: "Margot", LastName: "DELAHAYE"},
	{FirstName: "Hélène", LastName: "THIERCELIN"},
}

// openStores はSTORE_DRIVERに応じてストアを開く。
// postgresの場合は接続確認まで行う。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		mem := repository.NewMemoryStore()
		now := time.Now()
		for _, t := range defaultTeachers {
			t.CreatedAt, t.UpdatedAt = now, now
			if err := mem.Teachers().Create(ctx, &t); err != nil {
				return nil, fmt.Errorf("failed to seed teachers: %w", err)
			}
		}
		slog.Warn("using in-memory store; data is lost on restart")
		return &stores{
			users:    mem.Users(),
			teachers: mem.Teachers(),
			sessions: mem.Sessions(),
			health:   handler.PingerAdapter{Ping: mem.Ping},
			close:    func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	return &stores{
		users:    repository.NewPostgresUserRepo(db),
		teachers: repository.NewPostgresTeacherRepo(db),
		sessions: repository.NewPostgresSessionRepo(db),
		health:   handler.HealthCheckerFunc(db.PingContext),
		close:    db.Close,
	}, nil
}

// newRouter は全依存関係をワイヤリングしたルーターを返す。
// 返されたRateLimiterはサーバー停止時にStopすること。
func newRouter(cfg *config.Config, st *stores, reg *prometheus.Registry, collector metrics.MetricsCollector) (http.Handler, *middleware.RateLimiter, error) {
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:   cfg.JWTSecret,
		Validity: cfg.JWTExpiration,
		Issuer:   cfg.JWTIssuer,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token service: %w", err)
	}

	authService := auth.NewService(st.users, security.NewBcryptHasher(cfg.BcryptCost), tokens, collector)
	sessionService := session.NewService(
		st.sessions, st.teachers, st.users,
		security.NewTextSanitizer(), collector,
		session.Config{MaxRetries: cfg.ParticipationMaxRetries},
	)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		Metrics:            collector,
		MetricsHandler:     metrics.Handler(reg),
		PrincipalResolver:  authService,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rl,
		HealthChecker:      st.health,
		AuthService:        authService,
		SessionService:     sessionService,
		TeacherService:     teacher.NewService(st.teachers),
		UserService:        user.NewService(st.users),
	})
	return router, rl, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. ストア
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// 2. メトリクスレジストリ
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector := metrics.NewCollector(reg)

	// 3. ルーター
	router, rl, err := newRouter(cfg, st, reg, collector)
	if err != nil {
		return err
	}
	defer rl.Stop()

	// 4. インメモリストアは他プロセスから見えないため、古いセッションの削除もここで行う
	if cfg.StoreDriver == config.StoreDriverMemory && cfg.SessionRetentionDays > 0 {
		job := cleanup.NewCleanupJob(st.sessions, slog.Default(), collector, cfg.SessionRetentionDays)
		go job.Start(ctx, cfg.PurgeInterval)
	}

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// ストアを開き、古いセッションの日次削除ジョブを実行する。
// ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	job := cleanup.NewCleanupJob(st.sessions, slog.Default(), nil, cfg.SessionRetentionDays)
	if !job.Enabled() {
		slog.Info("session cleanup disabled (SESSION_RETENTION_DAYS=0); worker exiting")
		return nil
	}

	slog.Info("worker starting",
		slog.Int("retention_days", cfg.SessionRetentionDays),
		slog.Duration("purge_interval", cfg.PurgeInterval),
	)

	// ctxがキャンセルされるまでブロッキング
	job.Start(ctx, cfg.PurgeInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate は解析済みのplanに従ってデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, plan MigratePlan) error {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return fmt.Errorf("migrate requires STORE_DRIVER=%s", config.StoreDriverPostgres)
	}

	slog.Info("running database migrations",
		slog.String("action", string(plan.Action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch plan.Action {
	case MigrateUp:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, plan.Steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		slog.Info("rolled back migrations", slog.Int("steps", plan.Steps))
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("current migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		return fmt.Errorf("unknown migrate action: %q", plan.Action)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
