package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFacebookOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewFacebookOAuthProvider(FacebookOAuthConfig{
		ClientID:    "test-app-id",
		RedirectURL: "http://localhost:8080/auth/facebook/callback",
	})

	url := provider.GetLoginURL("test-state-value")

	tests := []struct {
		name     string
		contains string
	}{
		{"client_id", "client_id=test-app-id"},
		{"redirect_uri", "redirect_uri="},
		{"state", "state=test-state-value"},
		{"response_type", "response_type=code"},
		{"scope", "scope=email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(url, tt.contains) {
				t.Errorf("URL should contain %q, got %q", tt.contains, url)
			}
		})
	}
}

func TestFacebookOAuthProvider_ExchangeCode_Success(t *testing.T) {
	// Graph APIのトークンエンドポイントはGETでクエリパラメータを受け取る
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("token request method = %q, want GET", r.Method)
		}
		if code := r.URL.Query().Get("code"); code != "test-auth-code" {
			t.Errorf("token request code = %q, want %q", code, "test-auth-code")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fb-test-token",
			"token_type":   "bearer",
			"expires_in":   5183944,
		})
	}))
	defer tokenServer.Close()

	userServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fields := r.URL.Query().Get("fields"); fields != "id,name,email" {
			t.Errorf("user request fields = %q, want %q", fields, "id,name,email")
		}
		if authHeader := r.Header.Get("Authorization"); authHeader != "Bearer fb-test-token" {
			t.Errorf("unexpected Authorization header: %q", authHeader)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "fb-user-555",
			"name":  "Facebook User",
			"email": "fbuser@example.com",
		})
	}))
	defer userServer.Close()

	provider := NewFacebookOAuthProvider(FacebookOAuthConfig{
		ClientID:     "test-app-id",
		ClientSecret: "test-app-secret",
		RedirectURL:  "http://localhost:8080/auth/facebook/callback",
		TokenURL:     tokenServer.URL,
		UserURL:      userServer.URL,
	})

	userInfo, err := provider.ExchangeCode(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if userInfo.Provider != "facebook" {
		t.Errorf("provider = %q, want %q", userInfo.Provider, "facebook")
	}
	if userInfo.ProviderUserID != "fb-user-555" {
		t.Errorf("providerUserID = %q, want %q", userInfo.ProviderUserID, "fb-user-555")
	}
	if userInfo.Name != "Facebook User" {
		t.Errorf("name = %q, want %q", userInfo.Name, "Facebook User")
	}
	if userInfo.Email != "fbuser@example.com" {
		t.Errorf("email = %q, want %q", userInfo.Email, "fbuser@example.com")
	}
}

func TestFacebookOAuthProvider_ExchangeCode_MissingEmail_Succeeds(t *testing.T) {
	// メールアドレス未許可のアカウントでもログイン自体は成立する
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fb-test-token",
		})
	}))
	defer tokenServer.Close()

	userServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":   "fb-user-noemail",
			"name": "No Email User",
		})
	}))
	defer userServer.Close()

	provider := NewFacebookOAuthProvider(FacebookOAuthConfig{
		ClientID:    "test-app-id",
		RedirectURL: "http://localhost:8080/auth/facebook/callback",
		TokenURL:    tokenServer.URL,
		UserURL:     userServer.URL,
	})

	userInfo, err := provider.ExchangeCode(context.Background(), "code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if userInfo.Email != "" {
		t.Errorf("email = %q, want empty", userInfo.Email)
	}
	if userInfo.ProviderUserID != "fb-user-noemail" {
		t.Errorf("providerUserID = %q, want %q", userInfo.ProviderUserID, "fb-user-noemail")
	}
}

func TestFacebookOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer tokenServer.Close()

	provider := NewFacebookOAuthProvider(FacebookOAuthConfig{
		ClientID:    "test-app-id",
		RedirectURL: "http://localhost:8080/auth/facebook/callback",
		TokenURL:    tokenServer.URL,
	})

	_, err := provider.ExchangeCode(context.Background(), "bad-code")
	if err == nil {
		t.Fatal("expected error from ExchangeCode with invalid code")
	}
}

func TestNewFacebookOAuthProvider_KeepsInjectedHTTPClient(t *testing.T) {
	client := &http.Client{}
	provider := NewFacebookOAuthProvider(FacebookOAuthConfig{HTTPClient: client})

	if provider.config.HTTPClient != client {
		t.Error("expected injected HTTP client to be kept")
	}
}
