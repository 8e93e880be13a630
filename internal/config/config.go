// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/danielolaszy/triage/internal/filesystem"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Jira   JiraConfig
	Triage TriageConfig
	Fetch  FetchConfig
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL      string
	Username string
	Token    string
	// AccessToken is a personal access token. When set it is used as a
	// bearer token instead of Username and Token.
	AccessToken    string
	RequestTimeout time.Duration
}

// TriageConfig describes where triage tickets live and where their
// attachments are kept.
type TriageConfig struct {
	DataDir           string
	Project           string
	Component         string
	ReclaimIncomplete bool
}

// FetchConfig holds the failure budgets of the ticket fetcher.
type FetchConfig struct {
	SearchRetries         int
	ParseFailureThreshold int
	RetryDelay            time.Duration
}

// LedgerPath returns the location of the download ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Triage.DataDir, ".ledger.db")
}

// LoadConfig initializes and loads configuration from environment variables
// and, when path is not empty, from a configuration file. Environment
// variables take precedence over the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := setDefaults(v); err != nil {
		return nil, err
	}

	// Map specific environment variables
	bindings := map[string]string{
		"jira.url":                      "JIRA_URL",
		"jira.username":                 "JIRA_USERNAME",
		"jira.token":                    "JIRA_TOKEN",
		"jira.access_token":             "JIRA_ACCESS_TOKEN",
		"jira.request_timeout":          "JIRA_REQUEST_TIMEOUT",
		"triage.data_dir":               "TRIAGE_DATA_DIR",
		"triage.project":                "TRIAGE_PROJECT",
		"triage.component":              "TRIAGE_COMPONENT",
		"triage.reclaim_incomplete":     "TRIAGE_RECLAIM_INCOMPLETE",
		"fetch.search_retries":          "JIRA_SEARCH_FAILURE_RETRIES",
		"fetch.parse_failure_threshold": "PARSE_FAILURE_COUNT_FATALITY_THRESHOLD",
		"fetch.retry_delay":             "JIRA_SEARCH_RETRY_DELAY",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	config := &Config{
		Jira: JiraConfig{
			URL:            v.GetString("jira.url"),
			Username:       v.GetString("jira.username"),
			Token:          v.GetString("jira.token"),
			AccessToken:    v.GetString("jira.access_token"),
			RequestTimeout: v.GetDuration("jira.request_timeout"),
		},
		Triage: TriageConfig{
			DataDir:           v.GetString("triage.data_dir"),
			Project:           v.GetString("triage.project"),
			Component:         v.GetString("triage.component"),
			ReclaimIncomplete: v.GetBool("triage.reclaim_incomplete"),
		},
		Fetch: FetchConfig{
			SearchRetries:         v.GetInt("fetch.search_retries"),
			ParseFailureThreshold: v.GetInt("fetch.parse_failure_threshold"),
			RetryDelay:            v.GetDuration("fetch.retry_delay"),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) error {
	home, err := filesystem.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to resolve default data directory: %w", err)
	}

	v.SetDefault("jira.url", "https://issues.redhat.com")
	v.SetDefault("jira.request_timeout", 2*time.Minute)
	v.SetDefault("triage.data_dir", filepath.Join(home, ".triage", "data"))
	v.SetDefault("triage.project", "AITRIAGE")
	v.SetDefault("triage.component", "Cloud-Triage")
	v.SetDefault("triage.reclaim_incomplete", true)
	v.SetDefault("fetch.search_retries", 3)
	v.SetDefault("fetch.parse_failure_threshold", 3)
	v.SetDefault("fetch.retry_delay", 2*time.Second)
	return nil
}

// validateConfig ensures that the loaded values are usable.
func validateConfig(config *Config) error {
	var problems []string

	if config.Triage.DataDir == "" {
		problems = append(problems, "TRIAGE_DATA_DIR must not be empty")
	}
	if config.Fetch.SearchRetries < 1 {
		problems = append(problems, "JIRA_SEARCH_FAILURE_RETRIES must be at least 1")
	}
	if config.Fetch.ParseFailureThreshold < 0 {
		problems = append(problems, "PARSE_FAILURE_COUNT_FATALITY_THRESHOLD must not be negative")
	}
	if config.Jira.RequestTimeout < 0 {
		problems = append(problems, "JIRA_REQUEST_TIMEOUT must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration. Either an access
// token or a username and token pair is required.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.AccessToken == "" {
		if config.Jira.Username == "" {
			missingVars = append(missingVars, "JIRA_USERNAME")
		}
		if config.Jira.Token == "" {
			missingVars = append(missingVars, "JIRA_TOKEN")
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
