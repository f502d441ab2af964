// Package tracker is a thin client for the private tracker's HTTP API.
// Every numeric field on the wire is a string; responses wrap payloads in a
// {code, message, data} envelope where code "0" means success.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mteam-client/internal/credentials"
	"mteam-client/internal/domain"
)

const defaultBaseURL = "https://api.m-team.cc"

// Client issues search and download-token requests.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials credentials.Store
	logger      *logrus.Logger
}

// Config bundles client construction options.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

func NewClient(cfg Config, creds credentials.Store) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  cfg.HTTPClient,
		credentials: creds,
		logger:      cfg.Logger,
	}
}

type searchRequest struct {
	Mode       string   `json:"mode"`
	Visible    int      `json:"visible"`
	Keyword    string   `json:"keyword"`
	Categories []string `json:"categories"`
	PageNumber int      `json:"pageNumber"`
	PageSize   int      `json:"pageSize"`
}

type pageData struct {
	PageNumber string           `json:"pageNumber"`
	PageSize   string           `json:"pageSize"`
	Total      string           `json:"total"`
	TotalPages string           `json:"totalPages"`
	Data       []domain.Release `json:"data"`
}

type searchResponse struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    *pageData `json:"data"`
}

type tokenResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

// Search runs one paginated keyword search.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) (*domain.ResultPage, error) {
	body, err := json.Marshal(searchRequest{
		Mode:       string(query.Category),
		Visible:    1,
		Keyword:    query.Keyword,
		Categories: []string{},
		PageNumber: query.PageNumber,
		PageSize:   query.PageSize,
	})
	if err != nil {
		return nil, NewError(KindUnknown, "encode search request", err)
	}

	data, err := c.post(ctx, "/api/torrent/search", "application/json", body)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, NewError(KindDecoding, "search response did not match expected shape", err)
	}
	if resp.Code != "0" {
		return nil, NewError(KindRemoteAPI, apiMessage(resp.Message), nil)
	}
	if resp.Data == nil {
		return &domain.ResultPage{CurrentPage: 1}, nil
	}
	return resp.Data.toPage(), nil
}

// GenDownloadToken asks the tracker for a signed download URL for a release.
func (c *Client) GenDownloadToken(ctx context.Context, releaseID string) (string, error) {
	form := url.Values{"id": {releaseID}}
	data, err := c.post(ctx, "/api/torrent/genDlToken", "application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return "", err
	}

	var resp tokenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", NewError(KindDecoding, "download token response did not match expected shape", err)
	}
	if resp.Code != "0" {
		return "", NewError(KindRemoteAPI, apiMessage(resp.Message), nil)
	}
	if resp.Data == "" {
		return "", NewError(KindRemoteAPI, "no download URL returned", nil)
	}
	return resp.Data, nil
}

// FetchImage downloads a poster image. No envelope, no auth.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	if _, err := url.ParseRequestURI(imageURL); err != nil {
		return nil, NewError(KindInvalidURL, "malformed image URL", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, NewError(KindInvalidURL, "build image request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewError(KindNetwork, "fetch image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(KindNetwork, fmt.Sprintf("image fetch returned HTTP %d", resp.StatusCode), nil)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) post(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	apiKey, err := c.credentials.Get()
	if err != nil || apiKey == "" {
		return nil, NewError(KindInvalidCredential, "missing API key", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, NewError(KindUnknown, "build request", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("Content-Type", contentType)

	c.logger.Debugf("tracker request %s", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewError(KindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindNetwork, "read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, NewError(KindInvalidCredential, "API key rejected", nil)
	case resp.StatusCode != http.StatusOK:
		return nil, NewError(KindNetwork, "HTTP "+strconv.Itoa(resp.StatusCode), nil)
	}
	return data, nil
}

func (p *pageData) toPage() *domain.ResultPage {
	page := &domain.ResultPage{
		Releases:    p.Data,
		TotalCount:  atoiOr(p.Total, 0),
		CurrentPage: atoiOr(p.PageNumber, 1),
		TotalPages:  atoiOr(p.TotalPages, 0),
	}
	if page.Releases == nil {
		page.Releases = []domain.Release{}
	}
	return page
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func apiMessage(msg string) string {
	if strings.TrimSpace(msg) == "" {
		return "unknown tracker error"
	}
	return msg
}
