package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"jeop3/internal/config"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testConfig() config.Fetch {
	return config.Fetch{Timeout: "5s", UserAgent: "jeop3-test", MaxBytes: 1 << 20}
}

func TestReadURLsFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test-links.md")

	testContent := `# Reading list

- https://example.com/article1
- [Test Article](https://example.com/article2)
- Some text with https://example.com/article3 inline
- Invalid URL: not-a-url
- ftp://example.com/file (should be skipped)
- https://example.com/article1 (duplicate)
`
	if err := os.WriteFile(testFile, []byte(testContent), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	urls, err := ReadURLsFromFile(testFile)
	if err != nil {
		t.Fatalf("ReadURLsFromFile failed: %v", err)
	}

	expected := []string{
		"https://example.com/article1",
		"https://example.com/article2",
		"https://example.com/article3",
	}
	if len(urls) != len(expected) {
		t.Fatalf("Expected %d urls, got %d: %v", len(expected), len(urls), urls)
	}
	for i, u := range urls {
		if u != expected[i] {
			t.Errorf("Expected URL %s, got %s", expected[i], u)
		}
	}
}

func TestReadURLsFromFile_NonExistentFile(t *testing.T) {
	if _, err := ReadURLsFromFile("/nonexistent/file.md"); err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestHTTPFetcher_Success(t *testing.T) {
	testHTML := `<!DOCTYPE html>
<html>
<head><title>The Moon Landing</title></head>
<body>
  <nav><p>Home | About</p></nav>
  <article>
    <h1>Apollo 11</h1>
    <p>Neil Armstrong stepped onto the lunar surface in July 1969.</p>
  </article>
  <script>var tracking = true;</script>
</body>
</html>`

	var gotAuth, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testHTML))
	}))
	defer server.Close()

	article, err := NewHTTPFetcher(testConfig()).Fetch(context.Background(), server.URL, "secret")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("Expected bearer token header, got %q", gotAuth)
	}
	if gotAgent != "jeop3-test" {
		t.Errorf("Expected configured user agent, got %q", gotAgent)
	}
	if article.Title != "The Moon Landing" {
		t.Errorf("Expected title 'The Moon Landing', got %q", article.Title)
	}
	if !strings.Contains(article.Text, "Neil Armstrong") {
		t.Errorf("Expected article text, got %q", article.Text)
	}
	if strings.Contains(article.Text, "Home | About") || strings.Contains(article.Text, "tracking") {
		t.Errorf("Expected boilerplate to be stripped, got %q", article.Text)
	}
	if article.FetchedAt.IsZero() {
		t.Error("FetchedAt should not be zero")
	}
}

func TestHTTPFetcher_NoTokenSendsNoAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("Expected no Authorization header, got %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`<html><body><p>Plain page text</p></body></html>`))
	}))
	defer server.Close()

	if _, err := NewHTTPFetcher(testConfig()).Fetch(context.Background(), server.URL, ""); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
}

func TestHTTPFetcher_Errors(t *testing.T) {
	testCases := []struct {
		name         string
		status       int
		body         string
		authRequired bool
	}{
		{name: "not found", status: http.StatusNotFound, body: "missing", authRequired: false},
		{name: "unauthorized", status: http.StatusUnauthorized, body: "", authRequired: true},
		{name: "forbidden", status: http.StatusForbidden, body: "", authRequired: true},
		{name: "login wall", status: http.StatusInternalServerError, body: "Please sign in to continue", authRequired: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewHTTPFetcher(testConfig()).Fetch(context.Background(), server.URL, "")
			if err == nil {
				t.Fatal("Expected error")
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected *FetchError, got %T", err)
			}
			if fe.Status != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, fe.Status)
			}
			if IsAuthError(err) != tc.authRequired {
				t.Errorf("Expected IsAuthError=%v for %s", tc.authRequired, tc.name)
			}
			if !errors.Is(err, ErrFetchFailed) {
				t.Error("Expected error to wrap ErrFetchFailed")
			}
		})
	}
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	if _, err := NewHTTPFetcher(testConfig()).Fetch(context.Background(), "invalid-url", ""); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestHTTPFetcher_EmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Empty</title></head><body><script>x()</script></body></html>`))
	}))
	defer server.Close()

	_, err := NewHTTPFetcher(testConfig()).Fetch(context.Background(), server.URL, "")
	if err == nil || !strings.Contains(err.Error(), "no readable text") {
		t.Errorf("Expected no readable text error, got %v", err)
	}
}

func TestExtractHTMLTextTitles(t *testing.T) {
	testCases := []struct {
		name     string
		html     string
		expected string
	}{
		{name: "Title tag", html: `<html><head><title>Test Title</title></head><body></body></html>`, expected: "Test Title"},
		{name: "OpenGraph title", html: `<html><head><meta property="og:title" content="OG Title"></head><body></body></html>`, expected: "OG Title"},
		{name: "H1 title", html: `<html><head></head><body><h1>H1 Title</h1></body></html>`, expected: "H1 Title"},
		{name: "No title", html: `<html><head></head><body><p>No title here</p></body></html>`, expected: ""},
		{name: "Title with whitespace", html: `<html><head><title>  Spaced Title  </title></head><body></body></html>`, expected: "Spaced Title"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			title, _, err := ExtractHTMLText(tc.html)
			if err != nil {
				t.Fatalf("ExtractHTMLText failed: %v", err)
			}
			if title != tc.expected {
				t.Errorf("Expected '%s', got '%s'", tc.expected, title)
			}
		})
	}
}

func TestExtractHTMLTextFallsBackToBody(t *testing.T) {
	_, text, err := ExtractHTMLText(`<html><body><div><p>First paragraph.</p><p>Second paragraph.</p></div></body></html>`)
	if err != nil {
		t.Fatalf("ExtractHTMLText failed: %v", err)
	}
	if text != "First paragraph.\nSecond paragraph." {
		t.Errorf("Unexpected text: %q", text)
	}
}

func TestIsPDF(t *testing.T) {
	testCases := []struct {
		url         string
		contentType string
		expected    bool
	}{
		{"https://example.com/paper.pdf", "", true},
		{"https://example.com/paper.PDF?download=1", "", true},
		{"https://example.com/view", "application/pdf", true},
		{"https://example.com/page", "text/html", false},
	}
	for _, tc := range testCases {
		if got := IsPDF(tc.url, tc.contentType); got != tc.expected {
			t.Errorf("IsPDF(%q, %q) = %v, want %v", tc.url, tc.contentType, got, tc.expected)
		}
	}
}

func TestCleanPDFText(t *testing.T) {
	got := cleanPDFText("Title Line\n\n  ab \n   Body text here  \n")
	if got != "Title Line\nBody text here" {
		t.Errorf("Unexpected cleaned text: %q", got)
	}
}

func TestServiceFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req serviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch req.URL {
		case "https://example.com/ok":
			_ = json.NewEncoder(w).Encode(serviceResponse{Success: true, Title: "Ok", Text: "Fetched body text"})
		case "https://example.com/private":
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(serviceResponse{Success: false, Error: "authentication required"})
		default:
			_ = json.NewEncoder(w).Encode(serviceResponse{Success: false, Error: "timeout rendering page"})
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.ServiceURL = server.URL
	fetcher := NewFetcherFromConfig(cfg)
	if _, ok := fetcher.(*ServiceFetcher); !ok {
		t.Fatalf("Expected ServiceFetcher when service URL is set, got %T", fetcher)
	}

	article, err := fetcher.Fetch(context.Background(), "https://example.com/ok", "")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if article.Text != "Fetched body text" || article.Title != "Ok" {
		t.Errorf("Unexpected article: %+v", article)
	}

	_, err = fetcher.Fetch(context.Background(), "https://example.com/private", "")
	if !IsAuthError(err) {
		t.Errorf("Expected auth error, got %v", err)
	}

	_, err = fetcher.Fetch(context.Background(), "https://example.com/slow", "")
	if err == nil || IsAuthError(err) {
		t.Errorf("Expected non-auth fetch error, got %v", err)
	}
}

func TestNewFetcherFromConfigDefaultsToHTTP(t *testing.T) {
	if _, ok := NewFetcherFromConfig(testConfig()).(*HTTPFetcher); !ok {
		t.Error("Expected HTTPFetcher without a service URL")
	}
}
