package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hitoshi/picsearch/internal/model"
)

const (
	defaultFacebookAuthURL  = "https://www.facebook.com/v19.0/dialog/oauth"
	defaultFacebookTokenURL = "https://graph.facebook.com/v19.0/oauth/access_token"
	defaultFacebookUserURL  = "https://graph.facebook.com/v19.0/me"
)

// FacebookOAuthConfig はFacebook OAuthプロバイダーの設定。
type FacebookOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// 外部呼び出し用HTTPクライアント。nilの場合はhttp.DefaultClientを使用する。
	HTTPClient *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	UserURL  string
}

// FacebookOAuthProvider はFacebook Loginによる認証を提供する。
type FacebookOAuthProvider struct {
	config FacebookOAuthConfig
}

// NewFacebookOAuthProvider はFacebookOAuthProviderを生成する。
func NewFacebookOAuthProvider(config FacebookOAuthConfig) *FacebookOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultFacebookAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultFacebookTokenURL
	}
	if config.UserURL == "" {
		config.UserURL = defaultFacebookUserURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &FacebookOAuthProvider{config: config}
}

// GetLoginURL はFacebook Loginの認証URLを生成する。
// スコープはemailのみ。
func (p *FacebookOAuthProvider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"email"},
		"state":         {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// facebookTokenResponse はGraph APIのトークンエンドポイントのレスポンス。
type facebookTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// facebookUser はGraph APIの/meエンドポイントのレスポンス。
type facebookUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *FacebookOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	tokenResp, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	user, err := p.fetchUser(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &OAuthUserInfo{
		ProviderUserID: user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Provider:       model.ProviderFacebook,
	}, nil
}

// exchangeToken は認可コードをアクセストークンに交換する。
// Graph APIのトークンエンドポイントはGETでクエリパラメータを受け取る。
func (p *FacebookOAuthProvider) exchangeToken(ctx context.Context, code string) (*facebookTokenResponse, error) {
	reqURL, err := url.Parse(p.config.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token URL: %w", err)
	}

	q := reqURL.Query()
	q.Set("code", code)
	q.Set("client_id", p.config.ClientID)
	q.Set("client_secret", p.config.ClientSecret)
	q.Set("redirect_uri", p.config.RedirectURL)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp facebookTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tokenResp, nil
}

// fetchUser はアクセストークンでGraph APIの/meからユーザー情報を取得する。
func (p *FacebookOAuthProvider) fetchUser(ctx context.Context, accessToken string) (*facebookUser, error) {
	reqURL, err := url.Parse(p.config.UserURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user URL: %w", err)
	}

	q := reqURL.Query()
	q.Set("fields", "id,name,email")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user facebookUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}

	if user.ID == "" {
		return nil, fmt.Errorf("empty id in user response")
	}

	return &user, nil
}

// compile-time interface check
var _ OAuthProvider = (*FacebookOAuthProvider)(nil)
