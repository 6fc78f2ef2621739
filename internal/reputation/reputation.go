// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

// Package reputation asks the Safe Browsing threat-matching API whether a URL
// is known to be dangerous. Any failure to get an answer counts as safe.
package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"tab_monitor/internal/dto"
)

var (
	// ThreatTypes are the categories every lookup asks about
	ThreatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION"}

	// PlatformTypes are the platforms every lookup asks about
	PlatformTypes = []string{"WINDOWS", "LINUX", "ALL_PLATFORMS"}
)

// ErrNoAPIKey is logged when lookups are attempted without a provisioned key
var ErrNoAPIKey = errors.New("safe browsing key not configured")

type clientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type threatEntry struct {
	URL string `json:"url"`
}

type threatInfo struct {
	ThreatTypes      []string      `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry `json:"threatEntries"`
}

type findRequest struct {
	Client     clientInfo `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

type threatMatch struct {
	ThreatType   string      `json:"threatType"`
	PlatformType string      `json:"platformType"`
	Threat       threatEntry `json:"threat"`
}

type findResponse struct {
	Matches []threatMatch `json:"matches"`
}

// Checker looks up URLs against the threat-matching endpoint
type Checker struct {
	endpoint      string
	apiKey        string
	clientID      string
	clientVersion string
	httpClient    *http.Client
	logger        *log.Logger
}

// NewChecker creates a checker. timeout bounds each lookup.
func NewChecker(endpoint, apiKey, clientID, clientVersion string, timeout time.Duration, logger *log.Logger) *Checker {
	return &Checker{
		endpoint:      endpoint,
		apiKey:        apiKey,
		clientID:      clientID,
		clientVersion: clientVersion,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Check returns the safety verdict for rawURL, failing open on any error
func (c *Checker) Check(ctx context.Context, rawURL string) dto.SiteSafetyRecord {
	threat, err := c.Lookup(ctx, rawURL)
	if err != nil {
		c.logger.Printf("Warning: reputation check for %s failed, treating as safe: %v", rawURL, err)
		return dto.SiteSafetyRecord{Safe: true}
	}
	if threat == "" {
		return dto.SiteSafetyRecord{Safe: true}
	}
	return dto.SiteSafetyRecord{
		Safe:    false,
		Message: fmt.Sprintf("This URL is flagged as %s", threat),
	}
}

// Lookup returns the threat type of the first match, or "" when the URL
// has no matches
func (c *Checker) Lookup(ctx context.Context, rawURL string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	body, err := json.Marshal(findRequest{
		Client: clientInfo{
			ClientID:      c.clientID,
			ClientVersion: c.clientVersion,
		},
		ThreatInfo: threatInfo{
			ThreatTypes:      ThreatTypes,
			PlatformTypes:    PlatformTypes,
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []threatEntry{{URL: rawURL}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("key", c.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Strip the URL from the error so the key never reaches the log
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("threat service returned status %d", resp.StatusCode)
	}

	var found findResponse
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		return "", fmt.Errorf("malformed response: %w", err)
	}

	if len(found.Matches) == 0 {
		return "", nil
	}
	return found.Matches[0].ThreatType, nil
}
