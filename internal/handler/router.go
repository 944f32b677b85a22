package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/picsearch/internal/metrics"
	"github.com/hitoshi/picsearch/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CookieCodec       SessionCookieCodec
	CORSAllowedOrigin string
	Logger            *slog.Logger
	StatusRecorder    middleware.HTTPStatusRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 検索
	SearchService SearchServiceInterface

	// ヘルスチェック
	HealthChecker HealthChecker

	// メトリクス
	Gatherer prometheus.Gatherer

	// クライアントUI（埋め込み静的ファイル）。nilの場合は配信しない。
	StaticHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//
// セッション検証は保護されたAPIルートのグループにのみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))

	authHandler := NewAuthHandler(deps.AuthService, deps.CookieCodec, deps.AuthConfig)
	searchHandler := NewSearchHandler(deps.SearchService)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 認証不要のルート ---

	// 認証ルート（OAuthフロー）
	// 固定パスのlogout/current_userを{provider}より先に定義する
	r.Route("/auth", func(r chi.Router) {
		r.Get("/logout", authHandler.Logout)
		r.Get("/current_user", authHandler.CurrentUser)
		r.Get("/{provider}", authHandler.Login)
		r.Get("/{provider}/callback", authHandler.Callback)
	})

	// 人気検索語は未ログインでも閲覧可能
	r.Get("/api/top-searches", searchHandler.TopSearches)

	// 運用エンドポイント
	r.Get("/health", healthHandler.Check)
	r.Get("/ping", healthHandler.Ping)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.CookieCodec))

		r.Post("/api/search", searchHandler.Search)
		r.Get("/api/history", searchHandler.History)
	})

	// クライアントUI
	if deps.StaticHandler != nil {
		r.Handle("/*", deps.StaticHandler)
	}

	return r
}
