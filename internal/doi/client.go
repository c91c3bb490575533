// Package doi looks up bibliographic records by DOI from Crossref.
package doi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matsen/shelf/internal/logging"
	"github.com/matsen/shelf/internal/reference"
)

const (
	// BaseURL is the Crossref REST API base URL.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit stays well under Crossref's public pool limit.
	RateLimit = 10.0

	// MailtoEnv names the contact address sent to Crossref's polite pool.
	MailtoEnv = "CROSSREF_MAILTO"

	// SourceCrossref marks records looked up from Crossref.
	SourceCrossref = "crossref"
)

// crossrefTypes maps Crossref work types onto document types.
var crossrefTypes = map[string]string{
	"journal-article":     "article",
	"book":                "book",
	"monograph":           "book",
	"edited-book":         "book",
	"book-chapter":        "inbook",
	"proceedings-article": "inproceedings",
	"dissertation":        "phdthesis",
	"report":              "techreport",
	"posted-content":      "unpublished",
	"dataset":             "misc",
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
	spacePattern = regexp.MustCompile(`\s+`)
	doiPrefix    = regexp.MustCompile(`(?i)^(https?://(dx\.)?doi\.org/|doi:)`)
)

// Client is a rate-limited Crossref client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithMailto sets the contact address sent in the User-Agent.
func WithMailto(addr string) ClientOption {
	return func(c *Client) {
		c.mailto = addr
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logging.OrNop(l)
	}
}

// NewClient creates a Crossref client. The contact address defaults to
// $CROSSREF_MAILTO.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		mailto:     os.Getenv(MailtoEnv),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalize strips resolver prefixes and surrounding space from a DOI.
func Normalize(doi string) string {
	doi = strings.TrimSpace(doi)
	return strings.TrimSpace(doiPrefix.ReplaceAllString(doi, ""))
}

// Lookup fetches the record for doi and returns it as a partial document:
// bibliographic fields only, with no id, files, folders or flags of note.
func (c *Client) Lookup(ctx context.Context, doi string) (*reference.Document, error) {
	doi = Normalize(doi)
	if !strings.HasPrefix(doi, "10.") || !strings.Contains(doi, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDOI, doi)
	}
	work, err := c.fetchWork(ctx, doi)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, c.logger).Debug("crossref lookup", zap.String("doi", doi), zap.String("type", work.Type))
	return work.Document(), nil
}

func (c *Client) fetchWork(ctx context.Context, doi string) (*Work, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + "/works/" + url.PathEscape(doi)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	ua := "shelf/1.0"
	if c.mailto != "" {
		ua += " (mailto:" + c.mailto + ")"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, doi)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode), DOI: doi}
	}

	var wr workResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if wr.Status != "ok" {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidResponse, wr.Status)
	}
	return &wr.Message, nil
}

// Document maps the work onto a document.
func (w *Work) Document() *reference.Document {
	doc := reference.New()
	doc.SourceType = SourceCrossref
	doc.DOI = w.DOI
	if t, ok := crossrefTypes[w.Type]; ok {
		doc.Type = t
	}
	doc.Title = first(w.Title)
	doc.Publication = first(w.ContainerTitle)
	doc.Volume = w.Volume
	doc.Issue = w.Issue
	doc.Pages = w.Page
	doc.Publisher = w.Publisher
	doc.Edition = w.Edition
	doc.ISSN = first(w.ISSN)
	doc.ISBN = first(w.ISBN)
	doc.Keywords = w.Subject
	doc.Abstract = cleanAbstract(w.Abstract)
	if w.URL != "" {
		doc.URLs = []string{w.URL}
	}

	for _, d := range []*DateParts{w.Published, w.PublishedPrint, w.Issued} {
		if y, m, day := d.ymd(); y > 0 {
			doc.Year, doc.Month, doc.Day = y, m, day
			break
		}
	}

	authors := make([]reference.Author, 0, len(w.Author))
	for _, p := range w.Author {
		if p.Family == "" && p.Name != "" {
			authors = append(authors, reference.Author{Last: p.Name})
			continue
		}
		authors = append(authors, reference.Author{First: p.Given, Last: p.Family})
	}
	doc.SetAuthors(authors)
	return doc
}

// cleanAbstract drops the JATS markup Crossref wraps abstracts in.
func cleanAbstract(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return strings.TrimSpace(list[0])
}
