// Package docserver talks to an ONLYOFFICE Document Server: editor
// configuration, health checks, document builder runs and save callbacks.
package docserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNotConfigured = errors.New("document server not configured")
	ErrUnhealthy     = errors.New("document server unhealthy")
	ErrInvalidToken  = errors.New("invalid document server token")
	ErrTooLarge      = errors.New("document too large")
)

// DefaultMaxDownload caps documents fetched from save callbacks.
const DefaultMaxDownload = 64 << 20

// Config locates and authenticates against the document server.
type Config struct {
	URL       string
	JWTSecret string
	// JWTHeader carries the token on outbound requests; defaults to
	// Authorization.
	JWTHeader string
	Timeout   time.Duration
	// MaxDownload caps Download bodies; defaults to DefaultMaxDownload.
	MaxDownload int64
}

// Client is a document server client. It is safe for concurrent use.
type Client struct {
	base   string
	secret []byte
	header string
	http   *http.Client
	maxDL  int64
}

// New creates a client. The URL may be empty, in which case every call
// returns ErrNotConfigured.
func New(cfg Config) *Client {
	if cfg.JWTHeader == "" {
		cfg.JWTHeader = "Authorization"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxDownload <= 0 {
		cfg.MaxDownload = DefaultMaxDownload
	}
	return &Client{
		base:   strings.TrimRight(cfg.URL, "/"),
		secret: []byte(cfg.JWTSecret),
		header: cfg.JWTHeader,
		http:   &http.Client{Timeout: cfg.Timeout},
		maxDL:  cfg.MaxDownload,
	}
}

// Configured reports whether a document server URL is set.
func (c *Client) Configured() bool { return c.base != "" }

// DocAPIJS is the URL of the editor API script the page loads.
func (c *Client) DocAPIJS() string {
	return c.base + "/web-apps/apps/api/documents/api.js"
}

// Healthcheck checks that the document server is up.
func (c *Client) Healthcheck(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthcheck", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64))
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "true" {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Sign returns an HS256 token over claims, or "" when no secret is set.
func (c *Client) Sign(claims jwt.MapClaims) (string, error) {
	if len(c.secret) == 0 {
		return "", nil
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing document server token: %w", err)
	}
	return s, nil
}

// Verify parses a token signed with the shared secret and returns its
// claims. Without a secret nothing can be verified and Verify fails.
func (c *Client) Verify(token string) (jwt.MapClaims, error) {
	if len(c.secret) == 0 {
		return nil, ErrInvalidToken
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// SecretSet reports whether requests are signed.
func (c *Client) SecretSet() bool { return len(c.secret) > 0 }

// Download fetches a document the server offers for saving.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading document: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDL+1))
	if err != nil {
		return nil, fmt.Errorf("downloading document: %w", err)
	}
	if int64(len(data)) > c.maxDL {
		return nil, fmt.Errorf("downloading document: %w (limit %d bytes)", ErrTooLarge, c.maxDL)
	}
	return data, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, bearer string) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set(c.header, "Bearer "+bearer)
	}
	return c.http.Do(req)
}
