// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discovery configuration constants
const (
	// DiscoveryURL is the endpoint for auto-discovery configuration.
	// The hostname "tab-monitor.config" must be resolvable via DNS or /etc/hosts.
	//
	// The discovery server should respond with JSON:
	//   {"collector_url": "http://10.0.0.5:5000", "safe_browsing_key": "..."}
	DiscoveryURL = "http://tab-monitor.config:3000"

	// DiscoveryTimeout is the maximum time to wait for discovery response.
	// Kept short because the native host is started on browser launch.
	DiscoveryTimeout = 2 * time.Second
)

// discoveryResponse represents the JSON response from the discovery server
type discoveryResponse struct {
	CollectorURL    string `json:"collector_url"`
	SafeBrowsingKey string `json:"safe_browsing_key"`
}

// DiscoveryResult contains the configuration obtained from auto-discovery
type DiscoveryResult struct {
	CollectorURL    string
	SafeBrowsingKey string
}

// Discover attempts to fetch configuration from the discovery server.
// Returns nil if discovery fails or server is unavailable.
func Discover() *DiscoveryResult {
	return DiscoverFrom(DiscoveryURL, DiscoveryTimeout)
}

// DiscoverFrom queries a specific discovery endpoint
func DiscoverFrom(endpoint string, timeout time.Duration) *DiscoveryResult {
	client := &http.Client{
		Timeout: timeout,
	}

	resp, err := client.Get(endpoint)
	if err != nil {
		// Discovery server unavailable - this is expected in many deployments
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var discovery discoveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&discovery); err != nil {
		return nil
	}

	if discovery.SafeBrowsingKey == "" {
		return nil
	}

	return &DiscoveryResult{
		CollectorURL:    strings.TrimSuffix(discovery.CollectorURL, "/"),
		SafeBrowsingKey: discovery.SafeBrowsingKey,
	}
}

// FormatDiscoveryDocs returns documentation string for discovery setup
func FormatDiscoveryDocs() string {
	return fmt.Sprintf(`Auto-Discovery Configuration
============================
The monitor can obtain its Safe Browsing key and collector address from a
discovery server instead of a config file.

Requirements:
  1. The hostname "tab-monitor.config" must resolve to the discovery server IP.
  2. The discovery server must listen on port 3000 and respond to GET / with:
       {"collector_url": "http://10.0.0.5:5000", "safe_browsing_key": "your-key"}

Discovery URL: %s
Timeout: %s

Priority (highest to lowest):
  1. CLI flags (--collector-url, --safe-browsing-key)
  2. Environment variables (TAB_MONITOR_COLLECTOR_URL, TAB_MONITOR_SAFE_BROWSING_KEY)
  3. Config file (--config)
  4. Auto-discovery
`, DiscoveryURL, DiscoveryTimeout)
}
