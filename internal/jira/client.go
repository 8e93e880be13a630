// Package jira adapts the JIRA REST API to the tracker interfaces of the
// triage pipeline.
package jira

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/triage/internal/attachment"
	"github.com/danielolaszy/triage/internal/config"
	"github.com/danielolaszy/triage/internal/logging"
	"github.com/danielolaszy/triage/internal/ticket"
	"github.com/danielolaszy/triage/pkg/models"
)

var (
	_ ticket.Tracker    = (*Client)(nil)
	_ attachment.Source = (*Client)(nil)
)

// issueFields are the fields requested for every issue.
var issueFields = []string{"description", "components", "attachment", "created"}

// Client handles interactions with the JIRA API
type Client struct {
	client *jira.Client
}

// NewClient creates a new JIRA client. A personal access token is sent as a
// bearer token; without one, basic auth with username and API token is used.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("JIRA_URL is not set")
	}

	var (
		httpClient *http.Client
		auth       string
		secret     string
	)
	if cfg.AccessToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
		httpClient = oauth2.NewClient(context.Background(), ts)
		auth, secret = "access_token", cfg.AccessToken
	} else {
		if cfg.Username == "" || cfg.Token == "" {
			return nil, fmt.Errorf("either JIRA_ACCESS_TOKEN or JIRA_USERNAME and JIRA_TOKEN must be set")
		}
		tp := jira.BasicAuthTransport{
			Username: cfg.Username,
			Password: cfg.Token,
		}
		httpClient = tp.Client()
		auth, secret = "basic", cfg.Token
	}

	client, err := jira.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	logging.Debug("jira configuration",
		"url", cfg.URL,
		"auth", auth,
		"username", cfg.Username,
		"token", logging.MaskSensitive(secret))

	return &Client{client: client}, nil
}

// GetIssue fetches a single issue. A missing issue is reported as
// models.ErrIssueNotFound.
func (c *Client) GetIssue(ctx context.Context, key string) (*models.Issue, error) {
	opts := &jira.GetQueryOptions{Fields: strings.Join(issueFields, ",")}
	issue, resp, err := c.client.Issue.GetWithContext(ctx, key, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("issue %s: %w", key, models.ErrIssueNotFound)
		}
		return nil, requestError("failed to get issue "+key, resp, err)
	}

	converted := convertIssue(issue)
	return &converted, nil
}

// Search returns one page of issues matching jql.
func (c *Client) Search(ctx context.Context, jql string, maxResults, startAt int) (*models.SearchResult, error) {
	opts := &jira.SearchOptions{
		StartAt:    startAt,
		MaxResults: maxResults,
		Fields:     issueFields,
	}
	issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, opts)
	if err != nil {
		return nil, requestError("failed to search jira issues", resp, err)
	}

	result := &models.SearchResult{Issues: make([]models.Issue, 0, len(issues))}
	for i := range issues {
		result.Issues = append(result.Issues, convertIssue(&issues[i]))
	}
	if resp != nil {
		result.Total = resp.Total
	}

	logging.Debug("searched jira issues",
		"jql", jql,
		"start_at", startAt,
		"max_results", maxResults,
		"returned", len(result.Issues),
		"total", result.Total)
	return result, nil
}

// DownloadAttachment streams the content of an attachment. The caller must
// close the returned reader.
func (c *Client) DownloadAttachment(ctx context.Context, att models.Attachment) (io.ReadCloser, error) {
	resp, err := c.client.Issue.DownloadAttachmentWithContext(ctx, att.ID)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, requestError("failed to download attachment "+att.ID, resp, err)
	}
	return resp.Body, nil
}

func requestError(msg string, resp *jira.Response, err error) error {
	if resp != nil {
		return fmt.Errorf("%s: %w (status: %d)", msg, err, resp.StatusCode)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func convertIssue(issue *jira.Issue) models.Issue {
	out := models.Issue{Key: issue.Key}
	fields := issue.Fields
	if fields == nil {
		return out
	}

	out.Description = fields.Description
	out.Created = time.Time(fields.Created)
	for _, component := range fields.Components {
		if component != nil {
			out.Components = append(out.Components, component.Name)
		}
	}
	for _, att := range fields.Attachments {
		if att == nil {
			continue
		}
		out.Attachments = append(out.Attachments, models.Attachment{
			ID:       att.ID,
			Filename: att.Filename,
			Size:     int64(att.Size),
		})
	}
	return out
}
