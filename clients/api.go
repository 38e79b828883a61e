package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitwit/jobcredits/logger"
	"github.com/vitwit/jobcredits/types"
	"github.com/vitwit/jobcredits/utils"
)

const (
	contentType = "application/json"
	userAgent   = "vitwit/jobcredits"
)

// QuotaService returns the authoritative credit balance of an account.
type QuotaService interface {
	GetCredits(ctx context.Context, accountID string) (int, error)
}

// InsightService returns AI-ranked matches for a subject. The server debits one
// credit per successful call.
type InsightService interface {
	Suggestions(ctx context.Context, subject types.Subject) ([]types.InsightMatch, error)
}

// APIClient talks to the job-platform backend
type APIClient struct {
	baseURL    string
	token      string
	logger     logger.Logger
	HTTPClient *http.Client
	UserAgent  string
}

var (
	_ QuotaService   = (*APIClient)(nil)
	_ InsightService = (*APIClient)(nil)
)

type APIOption func(*APIClient)

// WithHTTPClient replaces the default http.Client (10s timeout).
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *APIClient) {
		if c != nil {
			a.HTTPClient = c
		}
	}
}

// WithSessionToken sends token as a bearer token on every request.
func WithSessionToken(token string) APIOption {
	return func(a *APIClient) {
		a.token = token
	}
}

func WithAPILogger(l logger.Logger) APIOption {
	return func(a *APIClient) {
		a.logger = logger.OrNoop(l)
	}
}

// NewAPIClient creates a client for the backend rooted at baseURL
func NewAPIClient(baseURL string, opts ...APIOption) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.NoopLogger{},
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: userAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type creditsResponse struct {
	Credits *int `json:"credits" validate:"required,gte=0"`
}

// GetCredits calls GET /credit/{userId}
func (c *APIClient) GetCredits(ctx context.Context, accountID string) (int, error) {
	var resp creditsResponse
	if err := c.getJSON(ctx, "/credit/"+url.PathEscape(accountID), &resp); err != nil {
		return 0, types.NewError(types.ErrQuotaFetchFailed, err, "failed to fetch credits for %s", accountID)
	}
	return *resp.Credits, nil
}

type seekerSuggestion struct {
	Title         *string `json:"title" validate:"required"`
	Company       *string `json:"company" validate:"required"`
	MatchingScore *int    `json:"matching_score" validate:"required,gte=0,lte=100"`
	Recommended   *bool   `json:"recommended" validate:"required"`
	Reasoning     string  `json:"reasoning"`
}

type candidateMatch struct {
	Name          *string `json:"name" validate:"required"`
	Email         *string `json:"email" validate:"required"`
	MatchingScore *int    `json:"matching_score" validate:"required,gte=0,lte=100"`
	Recommended   *bool   `json:"recommended" validate:"required"`
	Reasoning     string  `json:"reasoning"`
}

type jobSuggestionsResponse struct {
	Matches []candidateMatch `json:"matches" validate:"required,dive"`
}

// Suggestions routes subject to the matching insight endpoint
func (c *APIClient) Suggestions(ctx context.Context, subject types.Subject) ([]types.InsightMatch, error) {
	switch subject.Kind {
	case types.SubjectSeeker:
		return c.SeekerSuggestions(ctx, subject.ID)
	case types.SubjectJob:
		return c.JobSuggestions(ctx, subject.ID)
	default:
		return nil, types.NewError(types.ErrInsightFetchFailed, nil, "unsupported subject kind %q", subject.Kind)
	}
}

// SeekerSuggestions calls GET /users/{userId}/suggestions
func (c *APIClient) SeekerSuggestions(ctx context.Context, userID string) ([]types.InsightMatch, error) {
	var resp []seekerSuggestion
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(userID)+"/suggestions", &resp); err != nil {
		return nil, types.NewError(types.ErrInsightFetchFailed, err, "failed to fetch insights for user %s", userID)
	}

	matches := make([]types.InsightMatch, 0, len(resp))
	for _, s := range resp {
		matches = append(matches, types.InsightMatch{
			SubjectName:       *s.Title,
			SubjectIdentifier: *s.Company,
			MatchingScore:     *s.MatchingScore,
			Recommended:       *s.Recommended,
			Reasoning:         s.Reasoning,
		})
	}
	return matches, nil
}

// JobSuggestions calls GET /jobs/{jobId}/suggestions
func (c *APIClient) JobSuggestions(ctx context.Context, jobID string) ([]types.InsightMatch, error) {
	var resp jobSuggestionsResponse
	if err := c.getJSON(ctx, "/jobs/"+url.PathEscape(jobID)+"/suggestions", &resp); err != nil {
		return nil, types.NewError(types.ErrInsightFetchFailed, err, "failed to fetch insights for job %s", jobID)
	}

	matches := make([]types.InsightMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, types.InsightMatch{
			SubjectName:       *m.Name,
			SubjectIdentifier: *m.Email,
			MatchingScore:     *m.MatchingScore,
			Recommended:       *m.Recommended,
			Reasoning:         m.Reasoning,
		})
	}
	return matches, nil
}

// ListJobs calls GET /jobs
func (c *APIClient) ListJobs(ctx context.Context) ([]types.Job, error) {
	var jobs []types.Job
	if err := c.getJSON(ctx, "/jobs", &jobs); err != nil {
		return nil, types.NewError(types.ErrRequestFailed, err, "failed to fetch jobs")
	}
	return jobs, nil
}

// RecruiterJobs calls GET /jobs/recruiter/{recruiterId}
func (c *APIClient) RecruiterJobs(ctx context.Context, recruiterID string) ([]types.Job, error) {
	var jobs []types.Job
	if err := c.getJSON(ctx, "/jobs/recruiter/"+url.PathEscape(recruiterID), &jobs); err != nil {
		return nil, types.NewError(types.ErrRequestFailed, err, "failed to fetch jobs of recruiter %s", recruiterID)
	}
	return jobs, nil
}

// CreateJob calls POST /jobs
func (c *APIClient) CreateJob(ctx context.Context, job *types.NewJob) (*types.Job, error) {
	if err := utils.Validator().Struct(job); err != nil {
		return nil, types.NewError(types.ErrRequestFailed, err, "invalid job")
	}

	body, err := json.Marshal(job)
	if err != nil {
		return nil, types.NewError(types.ErrRequestFailed, err, "failed to encode job")
	}

	var created types.Job
	if err := c.doJSON(ctx, http.MethodPost, "/jobs", bytes.NewReader(body), http.StatusOK, &created); err != nil {
		return nil, types.NewError(types.ErrRequestFailed, err, "failed to create job")
	}
	return &created, nil
}

// DeleteJob calls DELETE /jobs/{jobId}
func (c *APIClient) DeleteJob(ctx context.Context, jobID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(jobID), nil, http.StatusOK, nil); err != nil {
		return types.NewError(types.ErrRequestFailed, err, "failed to delete job %s", jobID)
	}
	return nil
}

// GetUser calls GET /user/{userId}
func (c *APIClient) GetUser(ctx context.Context, userID string) (*types.UserProfile, error) {
	var user types.UserProfile
	if err := c.getJSON(ctx, "/user/"+url.PathEscape(userID), &user); err != nil {
		return nil, types.NewError(types.ErrRequestFailed, err, "failed to fetch user %s", userID)
	}
	return &user, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, target any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, http.StatusOK, target)
}

// doJSON performs a request and decodes a validated JSON body into target. Any
// 2xx status is accepted for writes; reads require 200.
func (c *APIClient) doJSON(ctx context.Context, method, path string, body io.Reader, want int, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	c.logger.Debug("make request", map[string]any{"method": method, "url": req.URL.String()})
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == want
	if method != http.MethodGet {
		ok = resp.StatusCode >= 200 && resp.StatusCode < 300
	}
	if !ok {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bad status: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if target == nil {
		return nil
	}
	return utils.DecodeJSON(resp.Body, target)
}
