// Package client is a Go client for the Vox HTTP API.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/soaringjerry/Vox/internal/services"
)

const sessionHeader = "x-session-token"

var (
	ErrUnauthorized = errors.New("client: unauthorized")
	ErrForbidden    = errors.New("client: forbidden")
)

// APIError is any other non-2xx answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: http %d", e.Status)
	}
	return fmt.Sprintf("client: http %d: %s", e.Status, e.Message)
}

type errorResponse struct {
	Error string `json:"error"`
}

type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: r}
}

// NewWithResty wraps a preconfigured resty client, e.g. one pointed at a
// test server.
func NewWithResty(r *resty.Client) *Client {
	return &Client{http: r}
}

func (c *Client) request(ctx context.Context, token string) *resty.Request {
	req := c.http.R().SetContext(ctx).SetError(&errorResponse{})
	if token != "" {
		req.SetHeader(sessionHeader, token)
	}
	return req
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if resp.IsSuccess() {
		return nil
	}
	msg := ""
	if e, ok := resp.Error().(*errorResponse); ok && e != nil {
		msg = e.Error
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return ErrUnauthorized
	case http.StatusForbidden:
		if msg != "" {
			return fmt.Errorf("%w: %s", ErrForbidden, msg)
		}
		return ErrForbidden
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}

type VerifyResult struct {
	Valid        bool      `json:"valid"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// VerifyPassword exchanges the recordings password for a session token. A
// wrong password is ErrUnauthorized.
func (c *Client) VerifyPassword(ctx context.Context, password string) (*VerifyResult, error) {
	var out VerifyResult
	resp, err := c.request(ctx, "").
		SetBody(map[string]string{"password": password}).
		SetResult(&out).
		Post("/api/verify-password")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	if !out.Valid || out.SessionToken == "" {
		return nil, ErrUnauthorized
	}
	return &out, nil
}

func (c *Client) ListRecordings(ctx context.Context, token string) ([]*services.Recording, error) {
	var out struct {
		Recordings []*services.Recording `json:"recordings"`
	}
	resp, err := c.request(ctx, token).SetResult(&out).Get("/api/get-recordings")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Recordings, nil
}

// DownloadRequest names the object by key, by recording id or by its
// public URL. The first non-empty field wins on the server.
type DownloadRequest struct {
	FilePath    string `json:"filePath,omitempty"`
	RecordingID string `json:"recordingId,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`
}

func (c *Client) DownloadURL(ctx context.Context, token string, req DownloadRequest) (string, error) {
	var out struct {
		SignedURL string `json:"signedUrl"`
	}
	resp, err := c.request(ctx, token).SetBody(req).SetResult(&out).Post("/api/download-recording")
	if err := check(resp, err); err != nil {
		return "", err
	}
	return out.SignedURL, nil
}

// Fetch downloads the object behind a signed URL.
func (c *Client) Fetch(ctx context.Context, signedURL string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).SetHeader("Accept", "*/*").Get(signedURL)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

type RoleResult struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Roles   []*services.UserRole `json:"roles,omitempty"`
}

func (c *Client) ManageRoles(ctx context.Context, token, action, userID, role string) (*RoleResult, error) {
	var out RoleResult
	resp, err := c.request(ctx, token).
		SetBody(map[string]string{"action": action, "userId": userID, "role": role}).
		SetResult(&out).
		Post("/api/manage-roles")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetupInitialAdmin(ctx context.Context, secret, userID string) (string, error) {
	var out RoleResult
	resp, err := c.request(ctx, "").
		SetBody(map[string]string{"setupSecret": secret, "userId": userID}).
		SetResult(&out).
		Post("/api/setup-initial-admin")
	if err := check(resp, err); err != nil {
		return "", err
	}
	return out.Message, nil
}

type UploadResult struct {
	ID        string `json:"id"`
	ObjectKey string `json:"objectKey"`
	AudioURL  string `json:"audioUrl"`
}

func (c *Client) Upload(ctx context.Context, userID string, questionID int, mime, filename string, data []byte) (*UploadResult, error) {
	var out UploadResult
	resp, err := c.request(ctx, "").
		SetFormData(map[string]string{
			"user_id":     userID,
			"question_id": strconv.Itoa(questionID),
		}).
		SetMultipartField("audio", filename, mime, bytes.NewReader(data)).
		SetResult(&out).
		Post("/api/recordings")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignOut(ctx context.Context, token string) error {
	resp, err := c.request(ctx, token).Post("/api/sign-out")
	return check(resp, err)
}

func (c *Client) CheckWhitelist(ctx context.Context, email string) (bool, error) {
	var out struct {
		Allowed bool `json:"allowed"`
	}
	resp, err := c.request(ctx, "").
		SetBody(map[string]string{"email": email}).
		SetResult(&out).
		Post("/api/check-whitelist")
	if err := check(resp, err); err != nil {
		return false, err
	}
	return out.Allowed, nil
}

func (c *Client) Questions(ctx context.Context, lang string) ([]services.Question, error) {
	var out struct {
		Locale    string              `json:"locale"`
		Questions []services.Question `json:"questions"`
	}
	req := c.request(ctx, "").SetResult(&out)
	if lang != "" {
		req.SetQueryParam("lang", lang)
	}
	resp, err := req.Get("/api/questions")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Questions, nil
}
