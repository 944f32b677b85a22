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

	"github.com/hitoshi/picsearch/internal/middleware"
	"github.com/hitoshi/picsearch/internal/model"
	"github.com/hitoshi/picsearch/internal/search"
)

// --- モック定義 ---

type mockSearchService struct {
	searchFn      func(ctx context.Context, userID, term string) (*search.Response, error)
	topSearchesFn func(ctx context.Context) ([]model.TopSearch, error)
	historyFn     func(ctx context.Context, userID string) ([]model.HistoryEntry, error)
}

func (m *mockSearchService) Search(ctx context.Context, userID, term string) (*search.Response, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, userID, term)
	}
	return &search.Response{Results: []model.SearchResultItem{}}, nil
}

func (m *mockSearchService) TopSearches(ctx context.Context) ([]model.TopSearch, error) {
	if m.topSearchesFn != nil {
		return m.topSearchesFn(ctx)
	}
	return nil, nil
}

func (m *mockSearchService) History(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, userID)
	}
	return nil, nil
}

var _ SearchServiceInterface = (*mockSearchService)(nil)

// --- テスト ---

func TestSearchHandler_Search_Success(t *testing.T) {
	svc := &mockSearchService{
		searchFn: func(ctx context.Context, userID, term string) (*search.Response, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			if term != "mountains" {
				t.Errorf("term = %q, want %q", term, "mountains")
			}
			return &search.Response{
				Term:  "mountains",
				Count: 1,
				Results: []model.SearchResultItem{
					{ID: "p1", Thumb: "t1", Full: "f1", Alt: "a mountain"},
				},
			}, nil
		},
	}
	h := NewSearchHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"term":"mountains"}`))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	w := httptest.NewRecorder()

	h.Search(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body search.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Term != "mountains" {
		t.Errorf("term = %q, want %q", body.Term, "mountains")
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
	if len(body.Results) != 1 || body.Results[0].ID != "p1" {
		t.Errorf("results = %+v, want one item with ID p1", body.Results)
	}
}

func TestSearchHandler_Search_WithoutUserContext_Returns401(t *testing.T) {
	h := NewSearchHandler(&mockSearchService{})

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"term":"x"}`))
	w := httptest.NewRecorder()

	h.Search(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error != "Unauthorized" {
		t.Errorf("error message = %q, want %q", body.Error, "Unauthorized")
	}
}

func TestSearchHandler_Search_ValidationError_Returns400(t *testing.T) {
	svc := &mockSearchService{
		searchFn: func(ctx context.Context, userID, term string) (*search.Response, error) {
			return nil, model.NewTermRequiredError()
		},
	}
	h := NewSearchHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"term":""}`))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	w := httptest.NewRecorder()

	h.Search(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Error != "term required" {
		t.Errorf("error message = %q, want %q", body.Error, "term required")
	}
}

func TestSearchHandler_Search_MalformedBody_TreatedAsMissingTerm(t *testing.T) {
	var capturedTerm string
	svc := &mockSearchService{
		searchFn: func(ctx context.Context, userID, term string) (*search.Response, error) {
			capturedTerm = term
			return nil, model.NewTermRequiredError()
		},
	}
	h := NewSearchHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{invalid`))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	w := httptest.NewRecorder()

	h.Search(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
	if capturedTerm != "" {
		t.Errorf("term = %q, want empty", capturedTerm)
	}
}

func TestSearchHandler_Search_PersistenceError_Returns500WithGenericMessage(t *testing.T) {
	svc := &mockSearchService{
		searchFn: func(ctx context.Context, userID, term string) (*search.Response, error) {
			return nil, errors.New("pq: connection refused at 10.0.0.5:5432")
		},
	}
	h := NewSearchHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"term":"x"}`))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
	w := httptest.NewRecorder()

	h.Search(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	// 接続情報などの内部詳細が漏れないこと
	body := w.Body.String()
	if strings.Contains(body, "10.0.0.5") {
		t.Errorf("response body leaks connection detail: %q", body)
	}

	var errBody middleware.ErrorResponseBody
	if err := json.Unmarshal([]byte(body), &errBody); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if errBody.Error != "Server error" {
		t.Errorf("error message = %q, want %q", errBody.Error, "Server error")
	}
}

func TestSearchHandler_TopSearches_ReturnsList(t *testing.T) {
	svc := &mockSearchService{
		topSearchesFn: func(ctx context.Context) ([]model.TopSearch, error) {
			return []model.TopSearch{
				{Term: "cats", Count: 12},
				{Term: "dogs", Count: 12},
				{Term: "fish", Count: 3},
			}, nil
		},
	}
	h := NewSearchHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/top-searches", nil)
	w := httptest.NewRecorder()

	h.TopSearches(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body []model.TopSearch
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 3 {
		t.Fatalf("len(body) = %d, want 3", len(body))
	}
	if body[0].Term != "cats" || body[0].Count != 12 {
		t.Errorf("body[0] = %+v, want {cats 12}", body[0])
	}
}

func TestSearchHandler_TopSearches_Empty_ReturnsEmptyArray(t *testing.T) {
	h := NewSearchHandler(&mockSearchService{})

	req := httptest.NewRequest(http.MethodGet, "/api/top-searches", nil)
	w := httptest.NewRecorder()

	h.TopSearches(w, req)

	// nullではなく[]を返すこと
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want %q", body, "[]")
	}
}

func TestSearchHandler_History_ReturnsEntries(t *testing.T) {
	now := time.Now()
	svc := &mockSearchService{
		historyFn: func(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
			if userID != "user-9" {
				t.Errorf("userID = %q, want %q", userID, "user-9")
			}
			return []model.HistoryEntry{
				{Term: "newest", Timestamp: now},
				{Term: "older", Timestamp: now.Add(-time.Hour)},
			}, nil
		},
	}
	h := NewSearchHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-9"))
	w := httptest.NewRecorder()

	h.History(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body []model.HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("len(body) = %d, want 2", len(body))
	}
	if body[0].Term != "newest" {
		t.Errorf("body[0].Term = %q, want %q", body[0].Term, "newest")
	}
}

func TestSearchHandler_History_WithoutUserContext_Returns401(t *testing.T) {
	h := NewSearchHandler(&mockSearchService{})

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()

	h.History(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
