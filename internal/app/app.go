// Package app はアプリケーションの初期化と起動を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/picsearch/internal/auth"
	"github.com/hitoshi/picsearch/internal/config"
	"github.com/hitoshi/picsearch/internal/database"
	"github.com/hitoshi/picsearch/internal/handler"
	"github.com/hitoshi/picsearch/internal/logger"
	"github.com/hitoshi/picsearch/internal/metrics"
	"github.com/hitoshi/picsearch/internal/model"
	"github.com/hitoshi/picsearch/internal/repository"
	"github.com/hitoshi/picsearch/internal/search"
	"github.com/hitoshi/picsearch/internal/security"
	"github.com/hitoshi/picsearch/internal/unsplash"
	"github.com/hitoshi/picsearch/internal/web"
	"github.com/hitoshi/picsearch/internal/worker/cleanup"
)

// sessionCleanupInterval は期限切れセッション削除ジョブの実行間隔。
const sessionCleanupInterval = 24 * time.Hour

// oauthHTTPTimeout はOAuthプロバイダーへの外部呼び出しのタイムアウト。
// トークン交換・ユーザー情報取得の両方に適用される。
const oauthHTTPTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

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
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// buildOAuthProviders は設定済みクレデンシャルからOAuthプロバイダーの
// マップを構築する。Googleは必須、GitHub/Facebookはクレデンシャルが
// 設定されている場合のみ有効化する。
// httpClientにはタイムアウトとSSRF防御を備えた外部呼び出し用クライアントを渡す。
func buildOAuthProviders(cfg *config.Config, httpClient *http.Client) map[string]auth.OAuthProvider {
	providers := map[string]auth.OAuthProvider{
		model.ProviderGoogle: auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL(model.ProviderGoogle),
			HTTPClient:   httpClient,
		}),
	}

	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		providers[model.ProviderGitHub] = auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.RedirectURL(model.ProviderGitHub),
			HTTPClient:   httpClient,
		})
	} else {
		slog.Info("github oauth disabled: credentials not configured")
	}

	if cfg.FacebookClientID != "" && cfg.FacebookClientSecret != "" {
		providers[model.ProviderFacebook] = auth.NewFacebookOAuthProvider(auth.FacebookOAuthConfig{
			ClientID:     cfg.FacebookClientID,
			ClientSecret: cfg.FacebookClientSecret,
			RedirectURL:  cfg.RedirectURL(model.ProviderFacebook),
			HTTPClient:   httpClient,
		})
	} else {
		slog.Info("facebook oauth disabled: credentials not configured")
	}

	return providers
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	searchRepo := repository.NewPostgresSearchRecordRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. セキュリティサービスの初期化
	outboundGuard := security.NewOutboundGuard()
	altSanitizer := security.NewAltSanitizer()
	cookieSigner := security.NewCookieSigner(cfg.SessionSecret)

	// 5. ドメインサービスの初期化
	authService := auth.NewService(
		buildOAuthProviders(cfg, outboundGuard.NewSafeClient(oauthHTTPTimeout)),
		userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	unsplashClient := unsplash.NewClient(
		outboundGuard.NewSafeClient(cfg.UnsplashTimeout),
		slog.Default(),
		altSanitizer,
		unsplash.ClientConfig{
			AccessKey: cfg.UnsplashAccessKey,
			PageSize:  cfg.SearchPageSize,
			APIURL:    cfg.UnsplashAPIURL,
		},
	)

	searchService := search.NewService(
		unsplashClient, searchRepo, collector,
		search.ServiceConfig{LogOrder: cfg.SearchLogOrder},
	)

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CookieCodec:       cookieSigner,
		CORSAllowedOrigin: cfg.ClientOrigin,
		Logger:            slog.Default(),
		StatusRecorder:    collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			ClientOrigin:  cfg.ClientOrigin,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		SearchService: searchService,

		HealthChecker: db,
		Gatherer:      registry,
		StaticHandler: web.Handler(),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// 期限切れセッションのクリーンアップを日次でバックグラウンド実行
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default())
	go cleanupJob.Start(ctx, sessionCleanupInterval)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
