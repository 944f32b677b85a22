// Package unsplash はUnsplash画像検索APIのクライアントを提供する。
// アクセスキーをサーバー側に隠蔽し、検索レスポンスを共通の結果形式に正規化する。
package unsplash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/picsearch/internal/model"
)

const (
	// defaultAPIURL はUnsplash APIのベースURL。
	defaultAPIURL = "https://api.unsplash.com"
	// searchPhotosPath は写真検索エンドポイントのパス。
	searchPhotosPath = "/search/photos"
	// defaultPageSize は1回の検索で取得する結果数。
	defaultPageSize = 30
	// requestsPerHour はクライアント側で守るUnsplashのレート上限。
	// デモアクセスキーの上限が50 req/hであるため、上流に429を返される前に
	// こちらで送出を抑える。
	requestsPerHour = 50
)

// AltSanitizer は上流から受け取ったalt文字列の無害化インターフェース。
type AltSanitizer interface {
	Sanitize(raw string) string
}

// ClientConfig はUnsplashクライアントの設定。
type ClientConfig struct {
	AccessKey string
	PageSize  int

	// テスト用にオーバーライド可能なベースURL
	APIURL string
}

// Client はUnsplash検索APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	sanitizer  AltSanitizer
	config     ClientConfig
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, sanitizer AltSanitizer, config ClientConfig) *Client {
	if config.APIURL == "" {
		config.APIURL = defaultAPIURL
	}
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(time.Hour/requestsPerHour), requestsPerHour),
		sanitizer:  sanitizer,
		config:     config,
	}
}

// searchResponse はUnsplashの検索エンドポイントのレスポンス。
type searchResponse struct {
	Results []searchResultPhoto `json:"results"`
}

// searchResultPhoto はUnsplashの写真1件分のレスポンス。
type searchResultPhoto struct {
	ID             string `json:"id"`
	AltDescription string `json:"alt_description"`
	URLs           struct {
		Full  string `json:"full"`
		Small string `json:"small"`
	} `json:"urls"`
}

// SearchPhotos は検索語で写真を検索し、正規化した結果リストを返す。
// フィールド対応: id←id, thumb←urls.small, full←urls.full, alt←alt_description。
// レスポンスにresults欄がない・JSONとして壊れている場合はエラーを返し、
// 空リストへの縮退判断は呼び出し元が行う。
func (c *Client) SearchPhotos(ctx context.Context, term string) ([]model.SearchResultItem, error) {
	// クライアント側レート制限: トークンが無ければブロックせず即エラーにする。
	// 検索リクエストを待たせるより、上限到達を上流到達不能として扱う方が
	// リクエストを吊るさないという方針に合う。
	if !c.limiter.Allow() {
		c.logger.Warn("Unsplash APIのクライアント側レート上限に達しました",
			slog.String("term", term),
		)
		return nil, fmt.Errorf("unsplash client rate limit reached")
	}

	reqURL, err := url.Parse(c.config.APIURL + searchPhotosPath)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("query", term)
	q.Set("per_page", fmt.Sprintf("%d", c.config.PageSize))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.config.AccessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Unsplash APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("term", term),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Unsplash APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("term", term),
		)
		return nil, fmt.Errorf("unsplash APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Error("Unsplash APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	items := make([]model.SearchResultItem, 0, len(parsed.Results))
	for _, photo := range parsed.Results {
		items = append(items, model.SearchResultItem{
			ID:    photo.ID,
			Thumb: photo.URLs.Small,
			Full:  photo.URLs.Full,
			Alt:   c.sanitizer.Sanitize(photo.AltDescription),
		})
	}

	return items, nil
}
