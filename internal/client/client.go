// Package client is a Go SDK for the FairTest API. Submissions pass a privacy
// audit on the device before anything is sent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fairtest/fairtest-backend/internal/evaluation"
	"github.com/fairtest/fairtest-backend/internal/identity"
	"github.com/fairtest/fairtest-backend/internal/ledger"
	"github.com/fairtest/fairtest-backend/internal/model"
	"github.com/fairtest/fairtest-backend/internal/privacy"
	"github.com/fairtest/fairtest-backend/internal/registry"
	"github.com/fairtest/fairtest-backend/internal/submission"
)

// Client talks to a FairTest server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	builder    *submission.Builder
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithToken authenticates evaluator calls.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithClock sets the clock used to timestamp submission payloads.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.builder = submission.NewBuilder(now)
	}
}

// NewClient creates a new FairTest client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		builder: submission.NewBuilder(nil),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is an error envelope returned by the server.
type APIError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// ─── Test-taker ─────────────────────────────────────────────────────

// Submit builds the payload for rec, audits the outgoing request against the
// wallet address and sends it. Nothing is transmitted when the audit fails.
func (c *Client) Submit(ctx context.Context, rec *identity.Record, answers submission.Answers) (*model.SubmitResponse, error) {
	if !rec.Verify() {
		return nil, errors.New("identity record does not verify")
	}
	payload, err := c.builder.Build(rec.PseudonymHash, rec.ExamID, answers)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}

	req := model.SubmitRequest{Payload: *payload, Answers: answers}
	if err := privacy.Guard(req, rec.WalletAddress); err != nil {
		return nil, err
	}

	var out model.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/submissions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Result reads a published or pending result by pseudonym hash.
func (c *Client) Result(ctx context.Context, pseudonymHash string) (*model.PublishedResult, error) {
	var out model.PublishedResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/results/"+url.PathEscape(pseudonymHash), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListExams lists registered exams matching query.
func (c *Client) ListExams(ctx context.Context, query string) ([]registry.Entry, error) {
	path := "/api/v1/exams"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out struct {
		Exams []registry.Entry `json:"exams"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Exams, nil
}

// LookupExam resolves a registered name.
func (c *Client) LookupExam(ctx context.Context, name string) (*registry.Entry, error) {
	var out struct {
		Exam *registry.Entry `json:"exam"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/exams/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return out.Exam, nil
}

// ─── Evaluator ──────────────────────────────────────────────────────

// Login exchanges evaluator credentials for a token. The client keeps the
// token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*model.EvaluatorLoginResponse, error) {
	var out model.EvaluatorLoginResponse
	req := model.EvaluatorLoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/evaluator/login", req, &out); err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// PutAnswerKey replaces an exam's answer key.
func (c *Client) PutAnswerKey(ctx context.Context, examID string, questions []evaluation.Question) error {
	req := model.PutAnswerKeyRequest{Questions: questions}
	return c.do(ctx, http.MethodPut, "/api/v1/evaluator/exams/"+url.PathEscape(examID)+"/answer-key", req, nil)
}

// RegisterExam claims a registry name.
func (c *Client) RegisterExam(ctx context.Context, req model.RegisterExamRequest) (*registry.Entry, error) {
	var out struct {
		Exam *registry.Entry `json:"exam"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/evaluator/exams/register", req, &out); err != nil {
		return nil, err
	}
	return out.Exam, nil
}

// ApplyManualGrades merges grades into one result.
func (c *Client) ApplyManualGrades(ctx context.Context, examID, pseudonymHash string, grades map[string]float64) (*evaluation.Result, error) {
	path := fmt.Sprintf("/api/v1/evaluator/exams/%s/results/%s/manual-grades", url.PathEscape(examID), url.PathEscape(pseudonymHash))
	var out struct {
		Result *evaluation.Result `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, path, model.ManualGradesRequest{Grades: grades}, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Publish ranks and anchors an exam's results.
func (c *Client) Publish(ctx context.Context, examID string) (*model.PublishResponse, error) {
	var out model.PublishResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/evaluator/exams/"+url.PathEscape(examID)+"/publish", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyLedger asks the server to walk the ledger chain.
func (c *Client) VerifyLedger(ctx context.Context) (*ledger.Report, error) {
	var out struct {
		Report *ledger.Report `json:"report"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/evaluator/ledger/verify", nil, &out); err != nil {
		return nil, err
	}
	return out.Report, nil
}

// ─── Transport ──────────────────────────────────────────────────────

// do sends in as JSON and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	resp, status, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error *APIError       `json:"error"`
	}
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return fmt.Errorf("HTTP %d: failed to unmarshal response: %w", status, err)
	}
	if envelope.Error != nil {
		envelope.Error.Status = status
		return envelope.Error
	}
	if status >= 400 {
		return &APIError{Status: status, Code: http.StatusText(status), Message: string(resp)}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}
