package apiclient

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

	"knowmystatus/internal/auth"
	"knowmystatus/internal/qrcode"
	"knowmystatus/internal/teacher"
)

var (
	// ErrUnauthorized is returned when the server rejects the bearer token.
	ErrUnauthorized = errors.New("not authorized")
	// ErrQRNotGenerated is returned when the teacher has no stored QR code.
	ErrQRNotGenerated = errors.New("qr code not generated")
)

// APIError is a non-2xx response from the server. Code is the stable error
// code of the body, empty when the server sent none.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("knowmystatus api %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known error codes, then auth statuses, to sentinels.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "teacher_not_found":
		return teacher.ErrNotFound
	case "invalid_qr":
		return qrcode.ErrInvalidPayload
	case "qr_not_generated":
		return ErrQRNotGenerated
	case "invalid_credentials":
		return ErrUnauthorized
	}
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Client calls the KnowMyStatus REST API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client with a short timeout.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	Teacher teacher.Teacher `json:"teacher"`
	auth.TokenPair
}

// Health checks if the API is available.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &out)
	return out, err
}

// Refresh exchanges a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	var out auth.TokenPair
	err := c.do(ctx, http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": refreshToken}, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context) (teacher.Teacher, error) {
	var out struct {
		Teacher teacher.Teacher `json:"teacher"`
	}
	err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, &out)
	return out.Teacher, err
}

// StatusUpdate changes the signed-in teacher's status. Nil Note and Until
// leave the stored values alone; ClearNote and ClearUntil null them.
type StatusUpdate struct {
	Status     string
	Note       *string
	ClearNote  bool
	Until      *time.Time
	ClearUntil bool
}

func (u StatusUpdate) body() map[string]any {
	body := map[string]any{"status": u.Status}
	switch {
	case u.ClearNote:
		body["status_note"] = nil
	case u.Note != nil:
		body["status_note"] = *u.Note
	}
	switch {
	case u.ClearUntil:
		body["status_until"] = nil
	case u.Until != nil:
		body["status_until"] = u.Until.UTC().Format(time.RFC3339)
	}
	return body
}

func (c *Client) UpdateStatus(ctx context.Context, u StatusUpdate) (teacher.Teacher, error) {
	var out struct {
		Teacher teacher.Teacher `json:"teacher"`
	}
	err := c.do(ctx, http.MethodPut, "/api/auth/profile", u.body(), &out)
	return out.Teacher, err
}

// GeneratedQR is the response of GenerateQR.
type GeneratedQR struct {
	URL     string         `json:"qrCodeUrl"`
	Payload qrcode.Payload `json:"qrData"`
}

func (c *Client) GenerateQR(ctx context.Context) (GeneratedQR, error) {
	var out GeneratedQR
	err := c.do(ctx, http.MethodPost, "/api/qr/generate", nil, &out)
	return out, err
}

// CurrentQR returns the stored code without regenerating it.
func (c *Client) CurrentQR(ctx context.Context) (GeneratedQR, error) {
	var out GeneratedQR
	err := c.do(ctx, http.MethodGet, "/api/qr/my-qr", nil, &out)
	return out, err
}

// Scan submits decoded QR text and returns the live profile.
func (c *Client) Scan(ctx context.Context, text string) (teacher.Profile, error) {
	return c.scan(ctx, text)
}

// Resolve implements the scanner's lookup with a single scan request.
func (c *Client) Resolve(ctx context.Context, p qrcode.Payload) (teacher.Profile, error) {
	if p.Bare {
		return c.scan(ctx, p.TeacherID)
	}
	return c.scan(ctx, p)
}

func (c *Client) scan(ctx context.Context, qrData any) (teacher.Profile, error) {
	var out struct {
		Teacher teacher.Profile `json:"teacher"`
	}
	err := c.do(ctx, http.MethodPost, "/api/qr/scan", map[string]any{"qrData": qrData}, &out)
	return out.Teacher, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("knowmystatus api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		e := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(bodyBytes))}
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			e.Message, e.Code = apiErr.Error, apiErr.Code
		}
		return e
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
