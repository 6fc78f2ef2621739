// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"tab_monitor/internal/config"
	"tab_monitor/internal/dispatcher"
	"tab_monitor/internal/nativehost"
	"tab_monitor/internal/page"
	"tab_monitor/internal/recent"
	"tab_monitor/internal/reputation"
	"tab_monitor/internal/sender"
	"tab_monitor/internal/session"
	"tab_monitor/internal/state"
)

// ExitCode represents the host exit status
type ExitCode int

const (
	ExitSuccess         ExitCode = 0 // Port closed cleanly
	ExitPartialFailure  ExitCode = 1 // Some browser messages were malformed
	ExitCompleteFailure ExitCode = 2 // The port broke down
)

// Monitor owns the long-lived pieces of a native host session
type Monitor struct {
	cfg      *config.Config
	state    *state.Manager
	sites    *recent.Store
	client   *sender.Client
	reporter *sender.Reporter
	checker  *reputation.Checker
	logger   *log.Logger
}

// RunResult contains the results of a host session
type RunResult struct {
	MessagesReceived int
	Malformed        int
	Errors           []string
	ExitCode         ExitCode
}

// NewLogger opens the configured log destination. Empty discards, STDERR
// writes to stderr. Stdout is never used since it carries the browser port.
func NewLogger(logFile string) (*log.Logger, error) {
	var logWriter io.Writer = io.Discard
	if logFile != "" {
		if strings.EqualFold(logFile, "STDERR") {
			logWriter = os.Stderr
		} else {
			f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file: %w", err)
			}
			logWriter = f
		}
	}

	return log.New(logWriter, "[tab_monitor] ", log.LstdFlags), nil
}

// New creates a new Monitor instance
func New(cfg *config.Config) (*Monitor, error) {
	logger, err := NewLogger(cfg.LogFile)
	if err != nil {
		return nil, err
	}

	stateMgr := state.NewManager(cfg.StateFile)
	if err := stateMgr.Load(); err != nil {
		logger.Printf("Warning: failed to load state: %v", err)
	}

	client := sender.NewClient(cfg.CollectorURL, cfg.Timeout, cfg.Compress)

	return &Monitor{
		cfg:      cfg,
		state:    stateMgr,
		sites:    recent.NewStore(stateMgr),
		client:   client,
		reporter: sender.NewReporter(client, logger),
		checker: reputation.NewChecker(cfg.SafeBrowsingURL, cfg.SafeBrowsingKey,
			cfg.ClientID, cfg.ClientVersion, cfg.ReputationTimeout, logger),
		logger: logger,
	}, nil
}

// Logger returns the monitor's logger
func (m *Monitor) Logger() *log.Logger {
	return m.logger
}

// Run serves the browser port on in/out until it closes or ctx is done.
// Queued tab events and in-flight telemetry are drained before returning.
func (m *Monitor) Run(ctx context.Context, in io.Reader, out io.Writer) *RunResult {
	result := &RunResult{}

	m.logger.Printf("Starting native host, collector %s", m.client.Endpoint())

	writer := nativehost.NewWriter(out)
	tracker := session.NewTracker(m.reporter)
	disp := dispatcher.New(m.checker, m.sites, m.reporter, writer, tracker, m.logger)
	pages := page.NewEventReporter(m.reporter)
	host := nativehost.New(in, writer, disp, pages, m.sites, m.logger)

	stats, err := host.Run(ctx)

	disp.Close()
	m.reporter.Wait()

	result.MessagesReceived = stats.Received
	result.Malformed = stats.Malformed

	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		result.Errors = append(result.Errors, fmt.Sprintf("browser port failed: %v", err))
		m.logger.Printf("Error: browser port failed: %v", err)
		result.ExitCode = ExitCompleteFailure
	case stats.Malformed > 0:
		result.Errors = append(result.Errors, fmt.Sprintf("%d malformed messages", stats.Malformed))
		result.ExitCode = ExitPartialFailure
	default:
		result.ExitCode = ExitSuccess
	}

	m.logger.Printf("Native host stopped: %d messages, %d malformed", stats.Received, stats.Malformed)

	return result
}
