// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/picsearch/internal/model"
	"github.com/hitoshi/picsearch/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google", "github", "facebook"
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// プロバイダーはグローバル登録ではなく、名前→実装のマップとして
// Serviceへ明示的に渡される。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ErrUnknownProvider はサポート外のプロバイダー名が指定されたことを表す。
var ErrUnknownProvider = errors.New("unknown oauth provider")

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	providers   map[string]OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
// providersは名前（"google"等）からOAuthProvider実装へのマップ。
func NewService(
	providers map[string]OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		providers:   providers,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// GetLoginURL は指定プロバイダーのOAuth認証URLを生成する。
// サポート外のプロバイダー名の場合はErrUnknownProviderを返す。
func (s *Service) GetLoginURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return p.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// (provider, provider_user_id)で既存ユーザーを検索し、
// 未登録の場合はusersレコードとidentitiesレコードを同時に作成する。
// 再ログインでプロファイルを同期することはない（create-if-absentのみ）。
func (s *Service) HandleCallback(ctx context.Context, provider, code string) (*model.Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. ユーザーの解決
	userID, err := s.resolveUser(ctx, userInfo)
	if err != nil {
		return nil, err
	}

	// 3. セッションを発行
	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// resolveUser は外部IDに対応するローカルユーザーIDを返す。
// 未登録の場合は作成する。同一外部IDの同時初回ログインは
// identitiesのUNIQUE制約で片方が負け、負けた側は既存identityを
// 読み直して続行する（ユーザーにはエラーを見せない）。
func (s *Service) resolveUser(ctx context.Context, userInfo *OAuthUserInfo) (string, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		slog.Info("existing user logged in",
			slog.String("user_id", identity.UserID),
			slog.String("provider", userInfo.Provider),
		)
		return identity.UserID, nil
	}

	// 新規ユーザー: usersレコードとidentitiesレコードを同時に作成
	newUserID := uuid.New().String()
	now := time.Now()

	newUser := &model.User{
		ID:        newUserID,
		Name:      userInfo.Name,
		Email:     userInfo.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUserID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      now,
	}

	err = s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity)
	if errors.Is(err, repository.ErrDuplicateIdentity) {
		// 同時初回ログインで先を越された。既存identityを読み直す。
		existing, findErr := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
		if findErr != nil {
			return "", fmt.Errorf("failed to re-find identity after duplicate: %w", findErr)
		}
		if existing == nil {
			return "", fmt.Errorf("identity vanished after duplicate key error")
		}
		slog.Info("concurrent first login resolved to existing user",
			slog.String("user_id", existing.UserID),
			slog.String("provider", userInfo.Provider),
		)
		return existing.UserID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUserID),
		slog.String("provider", userInfo.Provider),
	)
	return newUserID, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentUser はセッションから現在のユーザーの公開情報を取得する。
// セッションが存在しない・期限切れの場合はエラーではなく(nil, nil)を返す。
// 未認証は想定内の状態であり、例外扱いしない。
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*model.UserPublic, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	public := &model.UserPublic{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}

	identity, err := s.identRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	if identity != nil {
		public.Provider = identity.Provider
	}

	return public, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
