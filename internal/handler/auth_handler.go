// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/picsearch/internal/model"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, sessionID string) (*model.UserPublic, error)
}

// SessionCookieCodec はセッションCookie値の署名付与と検証のインターフェース。
// security.CookieSignerが満たす。
type SessionCookieCodec interface {
	Sign(value string) string
	Verify(signed string) (string, bool)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	ClientOrigin  string // ログイン成功・ログアウト後のリダイレクト先
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	codec   SessionCookieCodec
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, codec SessionCookieCodec, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		codec:   codec,
		config:  config,
	}
}

// Login は指定プロバイダーのOAuthフローを開始する。
// GET /auth/{provider}
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	url, err := h.service.GetLoginURL(provider, state)
	if err != nil {
		slog.Warn("login requested for unsupported provider",
			slog.String("provider", provider),
		)
		http.NotFound(w, r)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/{provider}/callback?code=xxx&state=yyy
// 失敗時はプロバイダーのエラー詳細を漏らさず、クライアントの
// ログイン画面へリダイレクトする。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("provider", provider),
			slog.String("query_state", state),
		)
		h.redirectToLogin(w, r)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback without authorization code",
			slog.String("provider", provider),
		)
		h.redirectToLogin(w, r)
		return
	}

	// 3. 認証処理
	session, err := h.service.HandleCallback(r.Context(), provider, code)
	if err != nil {
		slog.Error("oauth callback failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		h.redirectToLogin(w, r)
		return
	}

	// 4. 署名付きセッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    h.codec.Sign(session.ID),
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 5. クライアントのルートにリダイレクト
	http.Redirect(w, r, h.config.ClientOrigin, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄し、クライアントのルートにリダイレクトする。
// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// セッションCookieの取得と署名検証
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if sessionID, ok := h.codec.Verify(cookie.Value); ok {
			// セッションをDBから削除
			if logoutErr := h.service.Logout(r.Context(), sessionID); logoutErr != nil {
				slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
				// ログアウト失敗してもCookieはクリアする
			}
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.ClientOrigin, http.StatusTemporaryRedirect)
}

// CurrentUser は現在のログインユーザー情報を返す。
// GET /auth/current_user
// 未認証は例外ではなく通常の状態として扱い、常にHTTP 200で
// `{"user": null}` または `{"user": {...}}` を返す。
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	var sessionID string
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		// 署名検証に失敗したCookieは未認証として扱う
		if id, ok := h.codec.Verify(cookie.Value); ok {
			sessionID = id
		}
	}

	user, err := h.service.CurrentUser(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		user = nil
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]*model.UserPublic{
		"user": user,
	})
}

// redirectToLogin はクライアントのログイン画面にリダイレクトする。
func (h *AuthHandler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	loginURL := strings.TrimSuffix(h.config.ClientOrigin, "/") + "/login"
	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
