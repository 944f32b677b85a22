package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/picsearch/internal/model"
	"github.com/hitoshi/picsearch/internal/security"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(provider, state string) (string, error)
	handleCallbackFn func(ctx context.Context, provider, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	currentUserFn    func(ctx context.Context, sessionID string) (*model.UserPublic, error)
}

func (m *mockAuthService) GetLoginURL(provider, state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(provider, state)
	}
	return "", nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, provider, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, provider, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, sessionID string) (*model.UserPublic, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, sessionID)
	}
	return nil, nil
}

var _ AuthServiceInterface = (*mockAuthService)(nil)
var _ SessionCookieCodec = (*security.CookieSigner)(nil)

func testCookieSigner() *security.CookieSigner {
	return security.NewCookieSigner("test-session-secret")
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		ClientOrigin:  "http://localhost:3000",
		CookieDomain:  "",
		CookieSecure:  false,
		SessionMaxAge: 86400,
	}
}

// withProviderParam はchiのURLパラメータをリクエストコンテキストに注入する。
func withProviderParam(req *http.Request, provider string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("provider", provider)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// --- テスト ---

func TestAuthHandler_Login_RedirectsToOAuthURL(t *testing.T) {
	svc := &mockAuthService{
		getLoginURLFn: func(provider, state string) (string, error) {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
		},
	}
	h := NewAuthHandler(svc, testCookieSigner(), testAuthConfig())

	req := withProviderParam(httptest.NewRequest(http.MethodGet, "/auth/google", nil), "google")
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}

	location := resp.Header.Get("Location")
	if !strings.Contains(location, "accounts.google.com") {
		t.Errorf("Location = %q, should contain google oauth URL", location)
	}

	// stateクッキーが設定されること
	var stateCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "oauth_state" {
			stateCookie = c
		}
	}
	if stateCookie == nil {
		t.Fatal("expected oauth_state cookie to be set")
	}
	if stateCookie.Value == "" {
		t.Error("expected non-empty oauth_state cookie value")
	}
	if !stateCookie.HttpOnly {
		t.Error("oauth_state cookie should be HttpOnly")
	}
}

func TestAuthHandler_Login_UnknownProvider_Returns404(t *testing.T) {
	svc := &mockAuthService{
		getLoginURLFn: func(provider, state string) (string, error) {
			return "", errors.New("unknown oauth provider: twitter")
		},
	}
	h := NewAuthHandler(svc, testCookieSigner(), testAuthConfig())

	req := withProviderParam(httptest.NewRequest(http.MethodGet, "/auth/twitter", nil), "twitter")
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestAuthHandler_Callback_Success_SetsCookieAndRedirects(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, provider, code string) (*model.Session, error) {
			if provider != "google" {
				t.Errorf("provider = %q, want %q", provider, "google")
			}
			if code != "test-code" {
				t.Errorf("code = %q, want %q", code, "test-code")
			}
			return &model.Session{
				ID:        "session-id-abc",
				UserID:    "user-id-123",
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}, nil
		},
	}
	h := NewAuthHandler(svc, testCookieSigner(), testAuthConfig())

	req := withProviderParam(httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=test-code&state=test-state", nil), "google")
	// stateの検証のためにcookieを設定
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "test-state"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()

	// クライアントのルートにリダイレクトされること
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	location := resp.Header.Get("Location")
	if location != "http://localhost:3000" {
		t.Errorf("Location = %q, want %q", location, "http://localhost:3000")
	}

	// セッションクッキーが署名付き・HTTP Onlyで設定されること
	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected session_id cookie to be set")
	}
	if sessionCookie.Value == "session-id-abc" {
		t.Error("session cookie must not carry the raw session ID")
	}
	sessionID, ok := testCookieSigner().Verify(sessionCookie.Value)
	if !ok {
		t.Fatal("expected session cookie value to carry a valid signature")
	}
	if sessionID != "session-id-abc" {
		t.Errorf("signed session ID = %q, want %q", sessionID, "session-id-abc")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
}

func TestAuthHandler_Callback_StateMismatch_RedirectsToLogin(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, provider, code string) (*model.Session, error) {
			t.Error("HandleCallback should not be called on state mismatch")
			return nil, nil
		},
	}
	h := NewAuthHandler(svc, testCookieSigner(), testAuthConfig())

	req := withProviderParam(httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=c&state=attacker-state", nil), "google")
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "real-state"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if location := resp.Header.Get("Location"); location != "http://localhost:3000/login" {
		t.Errorf("Location = %q, want %q", location, "http://localhost:3000/login")
	}
}

func TestAuthHandler_Callback_MissingCode_RedirectsToLogin(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testCookieSigner(), testAuthConfig())

	req := withProviderParam(httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=s", nil), "google")
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if location := resp.Header.Get("Location"); location != "http://localhost:3000/login" {
		t.Errorf("Location = %q, want %q", location, "http://localhost:3000/login")
	}
}

func TestAuthHandler_Callback_ExchangeFailure_RedirectsToLoginWithoutDetail(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, provider, code string) (*model.Session, error) {
			return nil, errors.New("provider rejected: secret internal detail")
		},
	}
	h := NewAuthHandler(svc, testCookieSigner(), testAuthConfig())

	req := withProviderParam(httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=c&state=s", nil), "google")
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if location := resp.Header.Get("Location"); location != "http://localhost:3000/login" {
		t.Errorf("Location = %q, want %q", location, "http://localhost:3000/login")
	}

	// プロバイダーのエラー詳細がレスポンスに漏れないこと
	if body := w.Body.String(); strings.Contains(body, "secret internal detail") {
		t.Errorf("response body leaks provider error detail: %q", body)
	}
}

func TestAuthHandler_Logout_DeletesSessionAndClearsCookie(t *testing.T) {
	var deletedSessionID string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			deletedSessionID = sessionID
			return nil
		},
	}
	h := NewAuthHandler(svc, testCookieSigner(), testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: testCookieSigner().Sign("session-to-end")})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if location := resp.Header.Get("Location"); location != "http://localhost:3000" {
		t.Errorf("Location = %q, want %q", location, "http://localhost:3000")
	}

	if deletedSessionID != "session-to-end" {
		t.Errorf("deleted session ID = %q, want %q", deletedSessionID, "session-to-end")
	}

	// クッキーがクリアされること
	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session_id cookie to be cleared")
	}
}

func TestAuthHandler_Logout_TamperedCookie_SkipsDeleteButClearsCookie(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			t.Errorf("Logout should not be called for a tampered cookie, got %q", sessionID)
			return nil
		},
	}
	h := NewAuthHandler(svc, testCookieSigner(), testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "forged-without-signature"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}

	// 改ざんCookieでもクリアはされること
	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session_id cookie to be cleared")
	}
}

func TestAuthHandler_Logout_WithoutSession_StillRedirects(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testCookieSigner(), testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Result().StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTemporaryRedirect)
	}
}

func TestAuthHandler_CurrentUser_Unauthenticated_Returns200WithNullUser(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testCookieSigner(), testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/current_user", nil)
	w := httptest.NewRecorder()

	h.CurrentUser(w, req)

	resp := w.Result()
	// 未認証でも401ではなく常に200を返すこと
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(body["user"]) != "null" {
		t.Errorf(`body["user"] = %s, want null`, body["user"])
	}
}

func TestAuthHandler_CurrentUser_Authenticated_ReturnsPublicFields(t *testing.T) {
	svc := &mockAuthService{
		currentUserFn: func(ctx context.Context, sessionID string) (*model.UserPublic, error) {
			if sessionID != "valid-session" {
				t.Errorf("sessionID = %q, want %q", sessionID, "valid-session")
			}
			return &model.UserPublic{
				ID:       "user-1",
				Provider: "google",
				Name:     "Test User",
				Email:    "test@example.com",
			}, nil
		},
	}
	h := NewAuthHandler(svc, testCookieSigner(), testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/current_user", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: testCookieSigner().Sign("valid-session")})
	w := httptest.NewRecorder()

	h.CurrentUser(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		User *model.UserPublic `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.User == nil {
		t.Fatal("expected non-nil user")
	}
	if body.User.ID != "user-1" {
		t.Errorf("user ID = %q, want %q", body.User.ID, "user-1")
	}
	if body.User.Provider != "google" {
		t.Errorf("user provider = %q, want %q", body.User.Provider, "google")
	}
}

func TestAuthHandler_CurrentUser_TamperedCookie_TreatedAsUnauthenticated(t *testing.T) {
	svc := &mockAuthService{
		currentUserFn: func(ctx context.Context, sessionID string) (*model.UserPublic, error) {
			if sessionID != "" {
				t.Errorf("sessionID = %q, want empty for tampered cookie", sessionID)
			}
			return nil, nil
		},
	}
	h := NewAuthHandler(svc, testCookieSigner(), testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/current_user", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"}) // 署名なし
	w := httptest.NewRecorder()

	h.CurrentUser(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(body["user"]) != "null" {
		t.Errorf(`body["user"] = %s, want null`, body["user"])
	}
}

func TestAuthHandler_CurrentUser_ServiceError_Returns200WithNullUser(t *testing.T) {
	svc := &mockAuthService{
		currentUserFn: func(ctx context.Context, sessionID string) (*model.UserPublic, error) {
			return nil, errors.New("db down")
		},
	}
	h := NewAuthHandler(svc, testCookieSigner(), testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/current_user", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: testCookieSigner().Sign("s")})
	w := httptest.NewRecorder()

	h.CurrentUser(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if string(body["user"]) != "null" {
		t.Errorf(`body["user"] = %s, want null`, body["user"])
	}
}
