package qsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quatton/qgate/pkg/qapi/schemas"
	"github.com/quatton/qgate/pkg/qauth"
	"github.com/quatton/qgate/pkg/qerr"
)

// Sdk is a small gateway client with auth baked in. It provides a minimal
// surface that CLI commands can use so they don't need to wire keyring, HTTP
// and headers themselves.
type Sdk struct {
	BaseURL      string
	Token        string
	RefreshToken string

	http *http.Client
	// persist stores rotated tokens. Nil keeps them in memory only.
	persist func(baseURL, access, refresh string) error
}

type Option func(*Sdk)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sdk) { s.http = c }
}

// WithTokens seeds the session instead of reading the keyring, and keeps
// rotated tokens in memory.
func WithTokens(access, refresh string) Option {
	return func(s *Sdk) {
		s.Token = access
		s.RefreshToken = refresh
		s.persist = nil
	}
}

// NewSdk returns a client for cfg.BaseURL using the tokens stored in the
// keyring.
func NewSdk(cfg *Config, opts ...Option) *Sdk {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	access, refresh := LoadTokens(cfg.BaseURL)
	s := &Sdk{
		BaseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		Token:        access,
		RefreshToken: refresh,
		http:         &http.Client{Timeout: timeout},
		persist:      SaveTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClearCredentials removes cached tokens for the SDK's base URL from the
// keyring and resets the in-memory copies.
func (s *Sdk) ClearCredentials() {
	if s.persist != nil {
		_ = DeleteToken(s.BaseURL)
		_ = DeleteRefreshToken(s.BaseURL)
	}
	s.Token = ""
	s.RefreshToken = ""
}

func (s *Sdk) saveSession(access, refresh string) error {
	s.Token = access
	s.RefreshToken = refresh
	if s.persist == nil {
		return nil
	}
	return s.persist(s.BaseURL, access, refresh)
}

// Login runs the username/password flow and stores the session.
func (s *Sdk) Login(ctx context.Context, username, password string) (*schemas.Session, error) {
	form := url.Values{"username": {username}, "password": {password}}
	var session schemas.Session
	err := s.send(ctx, http.MethodPost, "/api/auth/keycloak-token", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), false, &session)
	if err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, qerr.Newf(qerr.CodeUnauthorized, "gateway returned no access token")
	}
	if err := s.saveSession(session.AccessToken, session.RefreshToken); err != nil {
		return nil, fmt.Errorf("saving credentials: %w", err)
	}
	return &session, nil
}

func (s *Sdk) Me(ctx context.Context) (*schemas.User, error) {
	var out struct {
		User schemas.User `json:"user"`
	}
	if err := s.do(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ProgramUpload is a program submission. Artifact is an archive of the
// program directory.
type ProgramUpload struct {
	Title        string
	Entrypoint   string
	Arguments    string
	Dependencies []string
	Artifact     io.Reader
	ArtifactName string
}

// RunProgram uploads a program and submits it as a job.
func (s *Sdk) RunProgram(ctx context.Context, in ProgramUpload) (*schemas.Job, error) {
	body, contentType, err := in.form()
	if err != nil {
		return nil, err
	}
	var job schemas.Job
	if err := s.send(ctx, http.MethodPost, "/api/programs/run", contentType, body, true, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (in ProgramUpload) form() (io.Reader, string, error) {
	deps := in.Dependencies
	if deps == nil {
		deps = []string{}
	}
	rawDeps, err := json.Marshal(deps)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"title", in.Title},
		{"entrypoint", in.Entrypoint},
		{"arguments", in.Arguments},
		{"dependencies", string(rawDeps)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	name := in.ArtifactName
	if name == "" {
		name = "program.tar"
	}
	part, err := w.CreateFormFile("artifact", name)
	if err != nil {
		return nil, "", err
	}
	if in.Artifact != nil {
		if _, err := io.Copy(part, in.Artifact); err != nil {
			return nil, "", fmt.Errorf("writing artifact: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (s *Sdk) ListPrograms(ctx context.Context) ([]schemas.Program, error) {
	var out struct {
		Programs []schemas.Program `json:"programs"`
	}
	if err := s.do(ctx, http.MethodGet, "/api/programs", nil, &out); err != nil {
		return nil, err
	}
	return out.Programs, nil
}

func (s *Sdk) ListJobs(ctx context.Context) ([]schemas.Job, error) {
	var out struct {
		Jobs []schemas.Job `json:"jobs"`
	}
	if err := s.do(ctx, http.MethodGet, "/api/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob returns the job with its status refreshed by the gateway.
func (s *Sdk) GetJob(ctx context.Context, jobID string) (*schemas.Job, error) {
	var job schemas.Job
	if err := s.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Sdk) JobLogs(ctx context.Context, jobID string) (string, error) {
	var out struct {
		Logs string `json:"logs"`
	}
	if err := s.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID)+"/logs", nil, &out); err != nil {
		return "", err
	}
	return out.Logs, nil
}

// StopJob returns the gateway's message, which tells whether the job was
// still running.
func (s *Sdk) StopJob(ctx context.Context, jobID string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := s.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/stop", nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ReportResult stores result, any JSON value, on the job.
func (s *Sdk) ReportResult(ctx context.Context, jobID string, result json.RawMessage) (*schemas.Job, error) {
	in := map[string]json.RawMessage{"result": result}
	var job schemas.Job
	if err := s.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/result", in, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// do sends in as JSON with credentials.
func (s *Sdk) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return s.send(ctx, method, path, contentType, body, true, out)
}

func (s *Sdk) send(ctx context.Context, method, path, contentType string, body io.Reader, auth bool, out any) error {
	if auth {
		if err := s.ensureValidToken(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if auth && s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if auth && resp.StatusCode == http.StatusUnauthorized {
			s.ClearCredentials()
		}
		return responseError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (s *Sdk) ensureValidToken(ctx context.Context) error {
	if s.Token == "" {
		if s.RefreshToken == "" {
			return qerr.Newf(qerr.CodeUnauthorized, "missing credentials")
		}
		return s.refreshTokens(ctx)
	}
	expired, err := qauth.IsTokenExpired(s.Token, 30*time.Second)
	if err != nil {
		return qerr.New(qerr.CodeUnauthorized, err)
	}
	if expired {
		return s.refreshTokens(ctx)
	}
	return nil
}

func (s *Sdk) refreshTokens(ctx context.Context) error {
	if s.RefreshToken == "" {
		return qerr.Newf(qerr.CodeUnauthorized, "access token expired and no refresh token is stored")
	}
	var in schemas.RefreshTokenRequest
	in.Body.RefreshToken = s.RefreshToken
	raw, err := json.Marshal(in.Body)
	if err != nil {
		return err
	}

	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := s.send(ctx, http.MethodPost, "/api/auth/refresh", "application/json", bytes.NewReader(raw), false, &out); err != nil {
		if qerr.IsCode(err, qerr.CodeUnauthorized) {
			s.ClearCredentials()
		}
		return err
	}
	return s.saveSession(out.AccessToken, out.RefreshToken)
}

// responseError turns a gateway error answer into a coded error.
func responseError(status int, body []byte) error {
	msg := errorMessage(body)
	switch status {
	case http.StatusUnauthorized:
		return qerr.Newf(qerr.CodeUnauthorized, "%s", msg)
	case http.StatusNotFound:
		return qerr.Newf(qerr.CodeNotFound, "%s", msg)
	case http.StatusConflict:
		return qerr.Newf(qerr.CodeNotSubmitted, "%s", msg)
	case http.StatusNotImplemented:
		return qerr.Newf(qerr.CodeNotConfigured, "%s", msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return qerr.Newf(qerr.CodeValidation, "%s", msg)
	default:
		return qerr.Upstream(status, strings.TrimSpace(string(body)))
	}
}

// errorMessage reads huma problem documents and {"message": ...} answers.
func errorMessage(body []byte) string {
	var doc struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Errors  []struct {
			Message  string `json:"message"`
			Location string `json:"location"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return strings.TrimSpace(string(body))
	}

	parts := []string{}
	if doc.Message != "" {
		parts = append(parts, doc.Message)
	}
	if doc.Detail != "" {
		parts = append(parts, doc.Detail)
	}
	for _, e := range doc.Errors {
		if e.Location != "" {
			parts = append(parts, e.Location+": "+e.Message)
		} else {
			parts = append(parts, e.Message)
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(string(body))
	}
	return strings.Join(parts, "; ")
}
