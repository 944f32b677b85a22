// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/picsearch/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// identitiesのUNIQUE(provider, provider_user_id)制約に違反した場合は
	// ErrDuplicateIdentityを返す。同一外部IDの同時初回ログインは
	// この制約で解決され、呼び出し元は既存identityを読み直して続行する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// FindByUserID は指定ユーザーのidentityを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// SearchRecordRepository は検索ログの永続化インターフェース。
// search_recordsは追記専用で、更新・削除操作は存在しない。
type SearchRecordRepository interface {
	// Create は検索レコードを追記する。
	Create(ctx context.Context, record *model.SearchRecord) error

	// ListRecentByUserID は指定ユーザーの直近の検索を新しい順で最大limit件返す。
	ListRecentByUserID(ctx context.Context, userID string, limit int) ([]model.HistoryEntry, error)

	// TopTerms は全ユーザー横断で出現回数の多い検索語を最大limit件返す。
	// 検索語は正規化なしの完全一致でグループ化され、回数降順、
	// 同数の場合は検索語の辞書順で安定に並ぶ。
	TopTerms(ctx context.Context, limit int) ([]model.TopSearch, error)
}
