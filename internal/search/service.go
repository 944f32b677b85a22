// Package search は検索プロキシ、検索履歴、人気検索語の集計を提供する。
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/picsearch/internal/model"
	"github.com/hitoshi/picsearch/internal/repository"
)

const (
	// topSearchLimit は人気検索語の最大件数。
	topSearchLimit = 5
	// historyLimit は検索履歴の最大件数。
	historyLimit = 100
)

// ImageSearcher は外部画像検索APIのインターフェース。
type ImageSearcher interface {
	// SearchPhotos は検索語で写真を検索し、正規化した結果リストを返す。
	SearchPhotos(ctx context.Context, term string) ([]model.SearchResultItem, error)
}

// MetricsRecorder は検索関連メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordSearch()
	RecordUpstreamFailure()
	RecordUpstreamLatency(duration time.Duration)
}

// Response は検索1回分のレスポンス。
type Response struct {
	Term    string                   `json:"term"`
	Count   int                      `json:"count"`
	Results []model.SearchResultItem `json:"results"`
}

// ServiceConfig は検索サービスの設定。
type ServiceConfig struct {
	// LogOrder は検索ログの書き込みタイミング。
	// SearchLogBefore: 上流呼び出し前に書き込む（原実装の挙動、デフォルト）。
	// SearchLogAfter: 上流呼び出し成功後に書き込む。
	LogOrder model.SearchLogOrder
}

// Service は検索に関するビジネスロジックを提供する。
type Service struct {
	searcher   ImageSearcher
	recordRepo repository.SearchRecordRepository
	metrics    MetricsRecorder
	config     ServiceConfig
}

// NewService はServiceを生成する。
func NewService(searcher ImageSearcher, recordRepo repository.SearchRecordRepository, metrics MetricsRecorder, config ServiceConfig) *Service {
	if config.LogOrder == "" {
		config.LogOrder = model.SearchLogBefore
	}
	return &Service{
		searcher:   searcher,
		recordRepo: recordRepo,
		metrics:    metrics,
		config:     config,
	}
}

// Search は検索語を検証し、ログを記録して外部画像検索APIに問い合わせる。
// 上流の失敗・タイムアウト・不正レスポンスは空の結果リストに縮退させ、
// リクエスト全体を失敗させない。LogOrderがbeforeの場合、
// 上流が失敗してもSearchRecordは残る。
func (s *Service) Search(ctx context.Context, userID, term string) (*Response, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, model.NewTermRequiredError()
	}

	if s.config.LogOrder == model.SearchLogBefore {
		if err := s.logSearch(ctx, userID, term); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	results, err := s.searcher.SearchPhotos(ctx, term)
	s.metrics.RecordUpstreamLatency(time.Since(start))
	if err != nil {
		// 縮退: 上流のエラー詳細はログのみに残し、空の結果で応答する。
		s.metrics.RecordUpstreamFailure()
		upstreamErr := model.NewUpstreamUnavailableError(err.Error())
		slog.Warn("image search upstream failed, degrading to empty results",
			slog.String("error", upstreamErr.Error()),
			slog.String("user_id", userID),
			slog.String("term", term),
		)
		results = []model.SearchResultItem{}
	}

	if s.config.LogOrder == model.SearchLogAfter && err == nil {
		if logErr := s.logSearch(ctx, userID, term); logErr != nil {
			return nil, logErr
		}
	}

	s.metrics.RecordSearch()

	return &Response{
		Term:    term,
		Count:   len(results),
		Results: results,
	}, nil
}

// TopSearches は全ユーザー横断の人気検索語を最大5件返す。
// 回数降順、同数は検索語の辞書順。認証不要の読み取り操作。
func (s *Service) TopSearches(ctx context.Context) ([]model.TopSearch, error) {
	top, err := s.recordRepo.TopTerms(ctx, topSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top searches: %w", err)
	}
	return top, nil
}

// History は指定ユーザーの直近の検索を新しい順で最大100件返す。
func (s *Service) History(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
	entries, err := s.recordRepo.ListRecentByUserID(ctx, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list search history: %w", err)
	}
	return entries, nil
}

// logSearch は検索レコードを追記する。
func (s *Service) logSearch(ctx context.Context, userID, term string) error {
	record := &model.SearchRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		Term:      term,
		CreatedAt: time.Now(),
	}
	if err := s.recordRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}
