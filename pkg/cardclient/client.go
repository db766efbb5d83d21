// Package cardclient is a typed HTTP client for the business-card API. It
// keeps the session cookie in a jar, applies a 30 s timeout to ordinary calls
// and a 120 s timeout to uploads, and retries an upload once when the
// transfer is aborted or times out.
package cardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 30 * time.Second
	UploadTimeout  = 120 * time.Second
)

// APIError is a non-2xx response carrying the server's message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to one API base URL with a persistent cookie session.
type Client struct {
	baseURL       string
	http          *http.Client
	timeout       time.Duration
	uploadTimeout time.Duration
	uploadRetries int
}

// New constructs a Client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          &http.Client{Jar: jar},
		timeout:       DefaultTimeout,
		uploadTimeout: UploadTimeout,
		uploadRetries: 1,
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Login starts a user session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.postJSON(ctx, "/api/auth/login", map[string]string{"email": email, "password": password}, nil)
}

// AdminLogin starts an admin session.
func (c *Client) AdminLogin(ctx context.Context, email, password string) error {
	return c.postJSON(ctx, "/api/admin/login", map[string]string{"email": email, "password": password}, nil)
}

// Logout ends the user session.
func (c *Client) Logout(ctx context.Context) error {
	return c.postJSON(ctx, "/api/auth/logout", struct{}{}, nil)
}

// RegisterRequest is the account registration body.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Phone       string `json:"phone,omitempty"`
	UserType    string `json:"user_type,omitempty"`
	ExistingURL string `json:"existing_url,omitempty"`
}

// Registration is returned by Register.
type Registration struct {
	UserID         uint   `json:"user_id"`
	Email          string `json:"email"`
	UserType       string `json:"user_type"`
	Status         string `json:"status"`
	BusinessCardID uint   `json:"business_card_id"`
	URLSlug        string `json:"url_slug"`
}

// Register creates an account and starts its session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Registration, error) {
	var out Registration
	if err := c.postJSON(ctx, "/api/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCard returns the current user's card as raw JSON.
func (c *Client) GetCard(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/business-card", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveResult is returned by UpdateCard and Autosave.
type SaveResult struct {
	BusinessCardID uint      `json:"business_card_id"`
	URLSlug        string    `json:"url_slug"`
	CardStatus     string    `json:"card_status"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpdateCard merges payload into the card.
func (c *Client) UpdateCard(ctx context.Context, payload interface{}) (*SaveResult, error) {
	var out SaveResult
	if err := c.postJSON(ctx, "/api/business-card/update", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Autosave stores a draft, creating the card if missing.
func (c *Client) Autosave(ctx context.Context, payload interface{}) (*SaveResult, error) {
	var out SaveResult
	if err := c.postJSON(ctx, "/api/mypage/autosave", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToolURL is one generated tech tool link.
type ToolURL struct {
	ToolType string `json:"tool_type"`
	ToolURL  string `json:"tool_url"`
}

// GenerateToolURLs renders tool URLs for the current card.
func (c *Client) GenerateToolURLs(ctx context.Context, tools []string) ([]ToolURL, error) {
	var out []ToolURL
	if err := c.postJSON(ctx, "/api/tech-tools/generate-urls", map[string][]string{"selected_tools": tools}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel cancels the current user's subscription.
func (c *Client) Cancel(ctx context.Context, immediately bool) error {
	return c.postJSON(ctx, "/api/mypage/cancel", map[string]bool{"cancel_immediately": immediately}, nil)
}

// UploadResult is returned by Upload.
type UploadResult struct {
	FilePath   string `json:"file_path"`
	WasResized bool   `json:"was_resized"`
}

// Upload sends one image as multipart form data. fileType is logo, photo or
// free. A network abort or per-attempt timeout is retried once.
func (c *Client) Upload(ctx context.Context, fileType, filename string, data []byte) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("file_type", fileType); err != nil {
		return nil, err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	body := buf.Bytes()

	var out UploadResult
	for attempt := 0; ; attempt++ {
		err = c.send(ctx, c.uploadTimeout, http.MethodPost, "/api/business-card/upload", mw.FormDataContentType(), body, &out)
		if err == nil {
			return &out, nil
		}
		if attempt >= c.uploadRetries || ctx.Err() != nil || !retryable(err) {
			return nil, err
		}
		logrus.WithError(err).WithField("file_type", fileType).Warn("upload aborted, retrying")
	}
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = raw
		contentType = "application/json"
	}
	return c.send(ctx, c.timeout, method, path, contentType, body, out)
}

func (c *Client) send(ctx context.Context, timeout time.Duration, method, path, contentType string, body []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 400 {
				return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
			}
			return fmt.Errorf("decode response: %w", err)
		}
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
