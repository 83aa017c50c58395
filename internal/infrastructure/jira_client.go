package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"jira-mcp-server/internal/domain"
)

// JiraClient is a typed wrapper over the Jira Cloud REST API (api/2 plus
// agile/1.0). Every method takes already-validated parameters, issues the
// underlying HTTP calls and maps the response into a domain entity or a
// classified ToolError.
//
// The only automatic retry in the server lives here: RemoteRateLimited and
// RemoteUnavailable failures are retried with bounded exponential backoff
// and full jitter before being surfaced. Client-side (4xx) failures are
// never retried.
type JiraClient struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	baseBackoff time.Duration
}

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = 500 * time.Millisecond
)

// NewJiraClient creates a Jira API client. The httpClient must already
// carry the credential (see domain.NewAuthenticatedClient); this type never
// sees or logs the token itself.
func NewJiraClient(baseURL string, httpClient *http.Client) *JiraClient {
	return &JiraClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}
}

// WithRetryPolicy overrides the transient-failure retry policy. Used by
// tests to keep backoff short.
func (c *JiraClient) WithRetryPolicy(maxAttempts int, baseBackoff time.Duration) *JiraClient {
	c.maxAttempts = maxAttempts
	c.baseBackoff = baseBackoff
	return c
}

// BaseURL returns the configured instance URL.
func (c *JiraClient) BaseURL() string {
	return c.baseURL
}

// do executes one logical API call: build request, execute with retries for
// transient failures, classify errors, decode the response into out when
// out is non-nil.
func (c *JiraClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return err
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return domain.NewToolError(domain.KindCancelled, "request cancelled: %v", ctx.Err())
			}
			lastErr = domain.NewToolError(domain.KindRemoteUnavailable, "request failed: %v", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return domain.NewToolError(domain.KindRemoteUnavailable, "failed to decode response: %v", err)
			}
			return nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		apiErr := classifyStatus(resp.StatusCode, string(snippet))
		if !apiErr.Transient() {
			return apiErr
		}
		lastErr = apiErr
	}

	return lastErr
}

// backoff sleeps for the attempt's jittered delay, aborting early on
// cancellation. Full jitter: a uniform draw from [0, base*2^(attempt-1)).
func (c *JiraClient) backoff(ctx context.Context, attempt int) error {
	ceiling := c.baseBackoff << (attempt - 1)
	delay := time.Duration(rand.Int63n(int64(ceiling) + 1))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return domain.NewToolError(domain.KindCancelled, "request cancelled: %v", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// classifyStatus maps an HTTP status to the error taxonomy.
func classifyStatus(status int, body string) *domain.ToolError {
	body = strings.TrimSpace(body)
	detail := fmt.Sprintf("API error (status %d)", status)
	if body != "" {
		detail += ": " + body
	}

	switch {
	case status == http.StatusNotFound:
		return domain.NewToolError(domain.KindRemoteNotFound, "%s", detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewToolError(domain.KindRemoteUnauthorized, "%s", detail)
	case status == http.StatusTooManyRequests:
		return domain.NewToolError(domain.KindRemoteRateLimited, "%s", detail)
	case status >= 400 && status < 500:
		return domain.NewToolError(domain.KindRemoteValidationRejected, "%s", detail)
	default:
		return domain.NewToolError(domain.KindRemoteUnavailable, "%s", detail)
	}
}

// GetIssueOptions narrows or widens the fields returned for an issue.
type GetIssueOptions struct {
	Fields []string
	Expand []string
}

// GetIssue retrieves an issue by key.
func (c *JiraClient) GetIssue(ctx context.Context, issueKey string, opts *GetIssueOptions) (*domain.Issue, error) {
	params := url.Values{}
	if opts != nil {
		if len(opts.Fields) > 0 {
			params.Set("fields", strings.Join(opts.Fields, ","))
		}
		if len(opts.Expand) > 0 {
			params.Set("expand", strings.Join(opts.Expand, ","))
		}
	}

	var issue domain.Issue
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+issueKey, params, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// CreateIssue creates a new issue and returns the created key/id.
func (c *JiraClient) CreateIssue(ctx context.Context, create *domain.IssueCreate) (*domain.Issue, error) {
	var issue domain.Issue
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", nil, create, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// UpdateIssue applies a field update to an existing issue.
func (c *JiraClient) UpdateIssue(ctx context.Context, issueKey string, update *domain.IssueUpdate) error {
	return c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+issueKey, nil, update, nil)
}

// GetTransitions lists the workflow transitions currently available on an
// issue.
func (c *JiraClient) GetTransitions(ctx context.Context, issueKey string) ([]domain.Transition, error) {
	var list domain.TransitionList
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+issueKey+"/transitions", nil, nil, &list); err != nil {
		return nil, err
	}
	return list.Transitions, nil
}

// TransitionIssue performs a workflow transition by transition id.
func (c *JiraClient) TransitionIssue(ctx context.Context, issueKey, transitionID string) error {
	var req domain.TransitionRequest
	req.Transition.ID = transitionID
	return c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+issueKey+"/transitions", nil, &req, nil)
}

// SearchOptions controls JQL search pagination and field selection.
type SearchOptions struct {
	StartAt    int
	MaxResults int
	Fields     []string
	Expand     []string
}

// SearchIssues performs a JQL search.
func (c *JiraClient) SearchIssues(ctx context.Context, jql string, opts *SearchOptions) (*domain.SearchResults, error) {
	params := url.Values{}
	params.Set("jql", jql)
	if opts != nil {
		if opts.StartAt > 0 {
			params.Set("startAt", strconv.Itoa(opts.StartAt))
		}
		if opts.MaxResults > 0 {
			params.Set("maxResults", strconv.Itoa(opts.MaxResults))
		}
		if len(opts.Fields) > 0 {
			params.Set("fields", strings.Join(opts.Fields, ","))
		}
		if len(opts.Expand) > 0 {
			params.Set("expand", strings.Join(opts.Expand, ","))
		}
	}

	var results domain.SearchResults
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/search", params, nil, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// GetProjectIssueTypes lists the issue types available in a project.
func (c *JiraClient) GetProjectIssueTypes(ctx context.Context, projectKey string) ([]domain.IssueType, error) {
	var project struct {
		IssueTypes []domain.IssueType `json:"issueTypes"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/project/"+projectKey, nil, nil, &project); err != nil {
		return nil, err
	}
	return project.IssueTypes, nil
}

// GetProjectStatuses lists a project's statuses grouped by issue type.
func (c *JiraClient) GetProjectStatuses(ctx context.Context, projectKey string) ([]domain.ProjectStatuses, error) {
	var groups []domain.ProjectStatuses
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/project/"+projectKey+"/statuses", nil, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GetBoards lists agile boards.
func (c *JiraClient) GetBoards(ctx context.Context) ([]domain.Board, error) {
	var list domain.BoardList
	if err := c.do(ctx, http.MethodGet, "/rest/agile/1.0/board", nil, nil, &list); err != nil {
		return nil, err
	}
	return list.Values, nil
}

// GetBoardSprints lists a board's sprints, optionally filtered by state
// (future, active, closed).
func (c *JiraClient) GetBoardSprints(ctx context.Context, boardID int, state string) ([]domain.Sprint, error) {
	params := url.Values{}
	if state != "" {
		params.Set("state", state)
	}

	var list domain.SprintList
	path := fmt.Sprintf("/rest/agile/1.0/board/%d/sprint", boardID)
	if err := c.do(ctx, http.MethodGet, path, params, nil, &list); err != nil {
		return nil, err
	}
	return list.Values, nil
}

// GetSprint retrieves a sprint by id.
func (c *JiraClient) GetSprint(ctx context.Context, sprintID int) (*domain.Sprint, error) {
	var sprint domain.Sprint
	path := fmt.Sprintf("/rest/agile/1.0/sprint/%d", sprintID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &sprint); err != nil {
		return nil, err
	}
	return &sprint, nil
}

// GetSprintIssues lists the issues assigned to a sprint.
func (c *JiraClient) GetSprintIssues(ctx context.Context, sprintID int) ([]domain.Issue, error) {
	var results domain.SearchResults
	path := fmt.Sprintf("/rest/agile/1.0/sprint/%d/issue", sprintID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &results); err != nil {
		return nil, err
	}
	return results.Issues, nil
}

// MoveIssuesToSprint assigns issues to a sprint. The bulk engine calls this
// once per issue so each item's outcome stays independent.
func (c *JiraClient) MoveIssuesToSprint(ctx context.Context, sprintID int, issueKeys []string) error {
	path := fmt.Sprintf("/rest/agile/1.0/sprint/%d/issue", sprintID)
	return c.do(ctx, http.MethodPost, path, nil, &domain.SprintMove{Issues: issueKeys}, nil)
}

// AddComment adds a comment to an issue and returns the created comment.
func (c *JiraClient) AddComment(ctx context.Context, issueKey, body string) (*domain.Comment, error) {
	var comment domain.Comment
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+issueKey+"/comment", nil,
		&domain.CommentCreate{Body: body}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetComments lists the comments on an issue.
func (c *JiraClient) GetComments(ctx context.Context, issueKey string) (*domain.CommentPage, error) {
	var page domain.CommentPage
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+issueKey+"/comment", nil, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AddWorklog records time spent on an issue and returns the created entry.
func (c *JiraClient) AddWorklog(ctx context.Context, issueKey string, create *domain.WorklogCreate) (*domain.Worklog, error) {
	var worklog domain.Worklog
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+issueKey+"/worklog", nil, create, &worklog); err != nil {
		return nil, err
	}
	return &worklog, nil
}

// LinkIssues creates a directional link between two issues.
func (c *JiraClient) LinkIssues(ctx context.Context, link *domain.LinkCreate) error {
	return c.do(ctx, http.MethodPost, "/rest/api/2/issueLink", nil, link, nil)
}

// GetIssueLinks fetches an issue's declared links.
func (c *JiraClient) GetIssueLinks(ctx context.Context, issueKey string) (*domain.Issue, error) {
	return c.GetIssue(ctx, issueKey, &GetIssueOptions{
		Fields: []string{"summary", "status", "issuetype", "project", "issuelinks"},
	})
}

// GetChangelog retrieves an issue's history, oldest entry first.
func (c *JiraClient) GetChangelog(ctx context.Context, issueKey string) ([]domain.ChangelogEntry, error) {
	params := url.Values{}
	params.Set("expand", "changelog")

	var issue domain.Issue
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+issueKey, params, nil, &issue); err != nil {
		return nil, err
	}
	if issue.Changelog == nil {
		return nil, nil
	}

	entries := issue.Changelog.Histories
	sort.SliceStable(entries, func(i, j int) bool {
		return changelogTime(entries[i].Created).Before(changelogTime(entries[j].Created))
	})
	return entries, nil
}

// changelogTime parses a Jira timestamp for ordering. Unparseable values
// sort first, which keeps the ordering deterministic.
func changelogTime(value string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05.000-0700", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
