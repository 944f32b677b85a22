package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/picsearch/internal/middleware"
	"github.com/hitoshi/picsearch/internal/model"
	"github.com/hitoshi/picsearch/internal/search"
)

// SearchServiceInterface は検索ハンドラーが必要とするサービスインターフェース。
type SearchServiceInterface interface {
	Search(ctx context.Context, userID, term string) (*search.Response, error)
	TopSearches(ctx context.Context) ([]model.TopSearch, error)
	History(ctx context.Context, userID string) ([]model.HistoryEntry, error)
}

// SearchHandler は画像検索関連のHTTPハンドラー。
type SearchHandler struct {
	service SearchServiceInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(service SearchServiceInterface) *SearchHandler {
	return &SearchHandler{service: service}
}

// searchRequest は検索リクエストのボディ。
type searchRequest struct {
	Term string `json:"term"`
}

// Search は検索語を記録し、画像検索結果を返す。
// POST /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	// ボディ不正は検索語未指定と同じ扱いでバリデーションに倒す
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.Term = ""
	}

	result, err := h.service.Search(r.Context(), userID, req.Term)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeValidation {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
		slog.Error("search failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// TopSearches は全ユーザー横断の人気検索語トップ5を返す。認証不要。
// GET /api/top-searches
func (h *SearchHandler) TopSearches(w http.ResponseWriter, r *http.Request) {
	terms, err := h.service.TopSearches(r.Context())
	if err != nil {
		slog.Error("failed to get top searches", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if terms == nil {
		terms = []model.TopSearch{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(terms)
}

// History はログインユーザーの最近の検索履歴を返す。
// GET /api/history
func (h *SearchHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	entries, err := h.service.History(r.Context(), userID)
	if err != nil {
		slog.Error("failed to get search history",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
