// Package api is the typed HTTP client for the translation service.
// Every authenticated call attaches the bearer token, and any
// authorization-rejected response fires the unauthorized hook exactly
// once before the error is returned to the caller.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type Client struct {
	baseURL        string
	client         *http.Client
	token          func() string
	onUnauthorized func()
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTokenSource supplies the bearer credential for authenticated calls.
// An empty return value means no token is attached.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) { c.token = fn }
}

// WithUnauthorizedHook registers the forced sign-out callback.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		token:   func() string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// doJSON issues the request and decodes a 2xx body into out (out may be
// nil). Non-2xx responses become *APIError; a 401 additionally fires the
// unauthorized hook and returns ErrUnauthorized.
func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return ErrUnauthorized
	}

	var body struct {
		Detail string `json:"detail"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return &APIError{StatusCode: resp.StatusCode, Detail: body.Detail}
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doJSON(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// SignUp creates an account. It deliberately returns no session; the
// caller must sign in afterwards.
func (c *Client) SignUp(ctx context.Context, name, email, password string) error {
	payload := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}
	return c.postJSON(ctx, "/auth/signup", payload, nil)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	var creds Credentials
	if err := c.postJSON(ctx, "/auth/signin", payload, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.postJSON(ctx, "/auth/signout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, "/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Upload sends the document as multipart form data and returns the
// server-assigned document ID.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp struct {
		DocID string `json:"doc_id"`
	}
	if err := c.doJSON(req, &resp); err != nil {
		return "", err
	}
	if resp.DocID == "" {
		return "", fmt.Errorf("upload response missing doc_id")
	}
	return resp.DocID, nil
}

func (c *Client) Translate(ctx context.Context, docID, sourceLang, targetLang string) (*TranslateResponse, error) {
	payload := map[string]string{
		"doc_id":      docID,
		"source_lang": sourceLang,
		"target_lang": targetLang,
	}
	var resp TranslateResponse
	if err := c.postJSON(ctx, "/translate", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var status TaskStatus
	if err := c.getJSON(ctx, "/task/"+taskID+"/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CancelTask requests server-side cancellation. Best effort: the server
// may let the job run to completion regardless.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	return c.postJSON(ctx, "/task/"+taskID+"/cancel", nil, nil)
}

func (c *Client) Documents(ctx context.Context) ([]Document, error) {
	var resp struct {
		Documents []Document `json:"documents"`
	}
	if err := c.getJSON(ctx, "/documents", &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// Download streams the translated document into w.
func (c *Client) Download(ctx context.Context, docID string, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/download/"+docID, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

func (c *Client) PaymentInitiate(ctx context.Context, tier string) (*PaymentRedirect, error) {
	payload := map[string]string{"tier": tier}
	var redirect PaymentRedirect
	if err := c.postJSON(ctx, "/payment/initiate", payload, &redirect); err != nil {
		return nil, err
	}
	return &redirect, nil
}

func (c *Client) PaymentVerify(ctx context.Context) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.postJSON(ctx, "/payment/verify", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
