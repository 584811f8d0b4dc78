package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"jeop3/internal/config"
	"net/http"
	"strings"
	"time"
)

// serviceRequest is the body posted to an external fetch service.
type serviceRequest struct {
	URL string `json:"url"`
}

// serviceResponse is what the fetch service answers with.
type serviceResponse struct {
	Success bool   `json:"success"`
	Title   string `json:"title,omitempty"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

// ServiceFetcher delegates fetching to an HTTP service, used when pages need a browser or a proxy.
type ServiceFetcher struct {
	endpoint string
	client   *http.Client
}

// NewServiceFetcher creates a fetcher posting to cfg.ServiceURL.
func NewServiceFetcher(cfg config.Fetch) *ServiceFetcher {
	return &ServiceFetcher{
		endpoint: cfg.ServiceURL,
		client:   &http.Client{Timeout: config.Duration(cfg.Timeout, 20*time.Second)},
	}
}

// NewFetcherFromConfig returns a ServiceFetcher when a service URL is configured, otherwise a direct HTTPFetcher.
func NewFetcherFromConfig(cfg config.Fetch) ArticleFetcher {
	if strings.TrimSpace(cfg.ServiceURL) != "" {
		return NewServiceFetcher(cfg)
	}
	return NewHTTPFetcher(cfg)
}

func (s *ServiceFetcher) Fetch(ctx context.Context, rawURL, authToken string) (Article, error) {
	payload, err := json.Marshal(serviceRequest{URL: rawURL})
	if err != nil {
		return Article{}, NewFetchError(rawURL, 0, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Article{}, NewFetchError(rawURL, 0, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Article{}, NewFetchError(rawURL, 0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Article{}, NewFetchError(rawURL, resp.StatusCode, fmt.Sprintf("failed to read service response: %v", err))
	}

	var result serviceResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Article{}, NewFetchError(rawURL, resp.StatusCode, statusMessage(resp.StatusCode, body))
		}
		return Article{}, NewFetchError(rawURL, resp.StatusCode, fmt.Sprintf("invalid service response: %v", err))
	}

	if resp.StatusCode != http.StatusOK || !result.Success {
		msg := result.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Article{}, NewFetchError(rawURL, resp.StatusCode, msg)
	}
	if strings.TrimSpace(result.Text) == "" {
		return Article{}, NewFetchError(rawURL, resp.StatusCode, "no readable text found on page")
	}

	return Article{
		URL:         rawURL,
		Title:       result.Title,
		Text:        strings.TrimSpace(result.Text),
		ContentType: "text/plain",
		FetchedAt:   time.Now().UTC(),
	}, nil
}
