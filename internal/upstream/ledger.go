// Package upstream contains clients for the systems of record the back
// office reads from. The only one today is the ledger API.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridianbank/opsdesk/internal/core"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
	"github.com/meridianbank/opsdesk/internal/resultset"
)

const (
	defaultTimeout          = 10 * time.Second
	defaultTokenTTL         = time.Minute
	defaultMaxResponseBytes = int64(32 << 20)
	maxErrorBodyBytes       = 2048
)

// Config captures the connection and signing settings for the ledger API.
type Config struct {
	// BaseURL is the ledger API root, e.g. https://ledger.internal:8443.
	BaseURL string
	// Secret signs the per-request HS256 bearer token.
	Secret string
	// Issuer and Audience are stamped into every token.
	Issuer   string
	Audience string
	// TokenTTL bounds token lifetime. Tokens are minted per request, so
	// this only needs to cover clock skew plus one request.
	TokenTTL time.Duration
	Timeout  time.Duration
	// MaxResponseBytes caps a collection payload. Responses beyond the
	// cap fail the fetch rather than silently truncating the dataset.
	MaxResponseBytes int64
	Client           *http.Client
}

// Client fetches record collections from the ledger API. Every request
// carries a freshly minted short-lived bearer token.
type Client struct {
	baseURL          *url.URL
	secret           []byte
	issuer           string
	audience         string
	tokenTTL         time.Duration
	maxResponseBytes int64
	client           *http.Client
	now              func() time.Time
}

var _ core.UpstreamSource = (*Client)(nil)

// NewClient builds a ledger client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("ledger base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ledger base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("ledger base url %q must be http or https", raw)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("ledger base url %q has no host", raw)
	}

	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("ledger signing secret is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	maxBytes := cfg.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:          base,
		secret:           []byte(cfg.Secret),
		issuer:           fallbackString(strings.TrimSpace(cfg.Issuer), "opsdesk"),
		audience:         fallbackString(strings.TrimSpace(cfg.Audience), "ledger"),
		tokenTTL:         ttl,
		maxResponseBytes: maxBytes,
		client:           hc,
		now:              time.Now,
	}, nil
}

// FetchCollection retrieves the collection at path and decodes it into
// records. The ledger serves collections as top-level JSON arrays; any
// other shape surfaces as a resultset.InvalidInputError.
func (c *Client) FetchCollection(ctx context.Context, path string) ([]resultset.Record, error) {
	target, err := c.collectionURL(path)
	if err != nil {
		return nil, err
	}

	token, err := c.mintToken()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create ledger request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleErrorResponse(resp, path)
	}

	body, truncated, readErr := readBody(resp.Body, c.maxResponseBytes)
	if closeErr := resp.Body.Close(); closeErr != nil && readErr == nil {
		readErr = fmt.Errorf("close response body: %w", closeErr)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read ledger collection %s: %w", path, readErr)
	}
	if truncated {
		return nil, apperrors.Internalf("ledger collection %s exceeds %d bytes", path, c.maxResponseBytes)
	}

	records, err := resultset.FromJSON(body)
	if err != nil {
		return nil, fmt.Errorf("ledger collection %s: %w", path, err)
	}
	return records, nil
}

func (c *Client) collectionURL(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("collection path is required")
	}
	joined, err := url.JoinPath(c.baseURL.String(), trimmed)
	if err != nil {
		return "", fmt.Errorf("join collection path %q: %w", path, err)
	}
	return joined, nil
}

func (c *Client) mintToken() (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": c.issuer,
		"aud": c.audience,
		"sub": "opsdesk",
		"iat": now.Unix(),
		"exp": now.Add(c.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign ledger token: %w", err)
	}
	return signed, nil
}

func (c *Client) handleErrorResponse(resp *http.Response, path string) error {
	snippet, _, readErr := readBody(resp.Body, maxErrorBodyBytes)
	closeErr := resp.Body.Close()
	if readErr != nil || closeErr != nil {
		snippet = nil
	}

	detail := strings.TrimSpace(string(snippet))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.Internalf("ledger rejected credentials for %s: %s", path, resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFoundf("ledger collection %s not found", path)
	case detail != "":
		return apperrors.Internalf("ledger collection %s: %s: %s", path, resp.Status, detail)
	default:
		return apperrors.Internalf("ledger collection %s: %s", path, resp.Status)
	}
}

func classifyTransportError(err error, path string) error {
	var uerr *url.Error
	switch {
	case errors.Is(err, context.Canceled):
		return apperrors.Wrapf(err, apperrors.ErrCodeCanceled, "ledger request for %s canceled", path)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "ledger request for %s timed out", path)
	case errors.As(err, &uerr) && uerr.Timeout():
		return apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "ledger request for %s timed out", path)
	default:
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal, "ledger request for %s failed", path)
	}
}

func readBody(body io.Reader, maxBytes int64) ([]byte, bool, error) {
	if body == nil {
		return nil, false, nil
	}
	limited := io.LimitReader(body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > maxBytes {
		return data[:maxBytes], true, nil
	}
	return data, false, nil
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
