package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"jeop3/internal/config"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// urlRegex is a simple regex to find URLs.
var urlRegex = regexp.MustCompile(`https?://[^\s)]+`)

var newlineRegex = regexp.MustCompile(`(\n\s*){2,}`)

// Article is the text extracted from a fetched URL.
type Article struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	ContentType string    `json:"content_type"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ArticleFetcher fetches readable text for a URL. authToken may be empty.
type ArticleFetcher interface {
	Fetch(ctx context.Context, rawURL, authToken string) (Article, error)
}

// ErrFetchFailed is wrapped by every FetchError.
var ErrFetchFailed = errors.New("fetch failed")

// FetchError describes a failed fetch. AuthRequired is set when the failure looks like an
// authorization problem, so callers can prompt for sign-in instead of showing a generic message.
type FetchError struct {
	URL          string
	Status       int
	Message      string
	AuthRequired bool
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("failed to fetch URL %s: status code %d: %s", e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("failed to fetch URL %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error { return ErrFetchFailed }

var authHints = []string{"unauthorized", "forbidden", "sign in", "sign-in", "login", "log in", "authenticat", "auth required", "access denied"}

// NewFetchError builds a FetchError and classifies authorization failures.
func NewFetchError(rawURL string, status int, message string) *FetchError {
	e := &FetchError{URL: rawURL, Status: status, Message: message}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		e.AuthRequired = true
		return e
	}
	lower := strings.ToLower(message)
	for _, hint := range authHints {
		if strings.Contains(lower, hint) {
			e.AuthRequired = true
			break
		}
	}
	return e
}

// IsAuthError reports whether err is a fetch failure caused by missing or rejected credentials.
func IsAuthError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.AuthRequired
}

// HTTPFetcher fetches pages directly and extracts their main text.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewHTTPFetcher creates a fetcher from the fetch section of the config.
func NewHTTPFetcher(cfg config.Fetch) *HTTPFetcher {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: config.Duration(cfg.Timeout, 20*time.Second)},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
	}
}

// Fetch downloads rawURL and returns its readable text. HTML goes through goquery, PDFs through the PDF reader.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, authToken string) (Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Article{}, NewFetchError(rawURL, 0, err.Error())
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Article{}, NewFetchError(rawURL, 0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Article{}, NewFetchError(rawURL, resp.StatusCode, fmt.Sprintf("failed to read response body: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return Article{}, NewFetchError(rawURL, resp.StatusCode, statusMessage(resp.StatusCode, body))
	}

	contentType := resp.Header.Get("Content-Type")
	article := Article{URL: rawURL, ContentType: contentType, FetchedAt: time.Now().UTC()}

	if IsPDF(rawURL, contentType) {
		title, text, err := ExtractPDFText(body)
		if err != nil {
			return Article{}, NewFetchError(rawURL, resp.StatusCode, err.Error())
		}
		article.Title = title
		article.Text = text
	} else {
		title, text, err := ExtractHTMLText(string(body))
		if err != nil {
			return Article{}, NewFetchError(rawURL, resp.StatusCode, err.Error())
		}
		article.Title = title
		article.Text = text
	}

	if strings.TrimSpace(article.Text) == "" {
		return Article{}, NewFetchError(rawURL, resp.StatusCode, "no readable text found on page")
	}
	return article, nil
}

func statusMessage(status int, body []byte) string {
	msg := http.StatusText(status)
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if snippet != "" {
		msg += ": " + snippet
	}
	return msg
}

// ExtractHTMLText returns the page title and its main textual content with boilerplate removed.
func ExtractHTMLText(htmlContent string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := extractTitle(doc)

	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner").Remove()

	var textBuilder strings.Builder
	mainContentSelectors := []string{
		"article", "main", ".main-content", ".entry-content", ".post-content", ".post-body", ".article-body",
		"[role='main']",
		".content", "#content",
	}

	blocks := "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre"
	for _, selector := range mainContentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			s.Find(blocks).Each(func(_ int, item *goquery.Selection) {
				writeBlock(&textBuilder, item.Text())
			})
		})
		if textBuilder.Len() > 0 {
			break
		}
	}

	if textBuilder.Len() == 0 {
		doc.Find("body").Find(blocks).Each(func(_ int, item *goquery.Selection) {
			writeBlock(&textBuilder, item.Text())
		})
	}

	text := newlineRegex.ReplaceAllString(textBuilder.String(), "\n")
	return title, strings.TrimSpace(text), nil
}

func writeBlock(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.WriteString(text)
	b.WriteString("\n\n")
}

// extractTitle tries head title, then og:title, then the first h1.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content"); strings.TrimSpace(ogTitle) != "" {
		return strings.TrimSpace(ogTitle)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// ReadURLsFromFile reads http(s) URLs from a text or markdown file, skipping duplicates.
func ReadURLsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open link file %s: %w", filePath, err)
	}
	defer file.Close()

	seen := make(map[string]bool)
	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		for _, textURL := range urlRegex.FindAllString(scanner.Text(), -1) {
			parsedURL, err := url.ParseRequestURI(textURL)
			if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
				continue
			}
			if seen[textURL] {
				continue
			}
			seen[textURL] = true
			urls = append(urls, textURL)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading link file %s: %w", filePath, err)
	}
	return urls, nil
}
