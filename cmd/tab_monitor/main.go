// Copyright (c) 2025 Binadox (https://binadox.com)
// This software is licensed under the zlib license. See LICENSE file for details.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tab_monitor/internal/collector"
	"tab_monitor/internal/config"
	"tab_monitor/internal/db"
	"tab_monitor/internal/dto"
	"tab_monitor/internal/installer"
	"tab_monitor/internal/monitor"
	"tab_monitor/internal/popup"
	"tab_monitor/internal/recent"
	"tab_monitor/internal/reputation"
	"tab_monitor/internal/sender"
	"tab_monitor/internal/state"
)

var (
	// Version info (set by ldflags)
	version   = "dev"
	buildTime = "unknown"
	commit    = "unknown"

	// Global flags
	cfgFile         string
	collectorURL    string
	safeBrowsingKey string
	stateFile       string
	logFile         string
	compress        bool
	timeout         time.Duration
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tab_monitor",
	Short: "Browser tab activity monitor",
	Long: `Native messaging host for the Tab Monitor extension. It tracks how long
each tab is viewed, checks visited sites against Safe Browsing, and reports
activity to a collector.`,
}

var hostCmd = &cobra.Command{
	Use:   "host [origin]",
	Short: "Run as the browser's native messaging host",
	Long: `Speaks the native messaging protocol on stdin/stdout. Browsers start
this through the installed launcher; stdout is reserved for the browser.`,
	// Browsers append the caller origin and, on Windows, --parent-window
	Args:               cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE:               runHost,
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the activity collection endpoint",
	Long:  `Serves POST /log_activity and stores records in SQLite.`,
	RunE:  runCollect,
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recently visited sites",
	RunE:  runRecent,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the native host with installed browsers",
	Long:  `Copies the binary for the current user and registers it with every detected browser.`,
	RunE:  runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the native host registration",
	RunE:  runUninstall,
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug commands for testing",
	Long:  `Various debug commands for testing individual components.`,
}

var debugCheckCmd = &cobra.Command{
	Use:   "check [url]",
	Short: "Check a URL against Safe Browsing",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebugCheck,
}

var debugSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a test record to the collector",
	RunE:  runDebugSend,
}

var debugStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show extension storage contents",
	RunE:  runDebugState,
}

var debugDiscoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Query the discovery server",
	RunE:  runDebugDiscovery,
}

// Collect command specific flags
var (
	listenAddr string
	database   string
)

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("tab_monitor version %s (commit: %s, built: %s)\n", version, commit, buildTime))

	// Global flags for all commands
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file path")
	pf.StringVar(&collectorURL, "collector-url", "", "collector base URL")
	pf.StringVar(&safeBrowsingKey, "safe-browsing-key", "", "Safe Browsing API key")
	pf.StringVar(&stateFile, "state-file", "", "path to extension storage file")
	pf.StringVar(&logFile, "log-file", "", "path to log file, or STDERR")
	pf.BoolVar(&compress, "compress", false, "gzip request bodies sent to the collector")
	pf.DurationVar(&timeout, "timeout", 0, "collector HTTP timeout (default: 10s)")

	collectCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default: 127.0.0.1:5000)")
	collectCmd.Flags().StringVar(&database, "database", "", "SQLite database path")

	debugCmd.AddCommand(debugCheckCmd)
	debugCmd.AddCommand(debugSendCmd)
	debugCmd.AddCommand(debugStateCmd)
	debugCmd.AddCommand(debugDiscoveryCmd)

	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(debugCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	compressSet := cmd.Flags().Changed("compress")
	cfg.ApplyFlags(collectorURL, safeBrowsingKey, stateFile, logFile, compress, compressSet, timeout)

	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runHost(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	m, err := monitor.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize monitor: %w", err)
	}
	if len(args) > 0 {
		m.Logger().Printf("Started by %s", args[0])
	}

	ctx, cancel := signalContext()
	defer cancel()

	result := m.Run(ctx, os.Stdin, os.Stdout)

	if result.ExitCode != monitor.ExitSuccess {
		os.Exit(int(result.ExitCode))
	}

	return nil
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if database != "" {
		cfg.Database = database
	}
	if cfg.Database == "" {
		cfg.Database = db.DefaultPath()
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "STDERR"
	}

	logger, err := monitor.NewLogger(cfg.LogFile)
	if err != nil {
		return err
	}

	store, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Printf("Storing activity in %s", store.Path())

	origins := append(append([]string{}, cfg.AllowedOrigins...), collector.ExtensionOrigins(cfg.ExtensionIDs)...)
	broadcaster := collector.NewBroadcaster(logger)
	defer broadcaster.Close()
	server := collector.NewServer(store, broadcaster, origins, logger)

	ctx, cancel := signalContext()
	defer cancel()

	return collector.ListenAndServe(ctx, cfg.ListenAddr, server.Router(), logger)
}

func openStorage(cfg *config.Config) (*state.Manager, error) {
	mgr := state.NewManager(cfg.StateFile)
	if err := mgr.Load(); err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return mgr, nil
}

func runRecent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	mgr, err := openStorage(cfg)
	if err != nil {
		return err
	}

	entries, err := recent.NewStore(mgr).ReadAll()
	if err != nil {
		return err
	}

	return popup.Render(os.Stdout, entries, time.Now())
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	inst, err := installer.New()
	if err != nil {
		return fmt.Errorf("failed to create installer: %w", err)
	}

	fmt.Println("Installing tab monitor native host...")
	if cfg.WasDiscovered() {
		fmt.Println("  Config source: auto-discovery")
	}

	browsers, err := inst.Install(cfg)
	if err != nil {
		return fmt.Errorf("installation failed: %w", err)
	}

	for _, name := range browsers {
		fmt.Printf("  Registered with %s\n", name)
	}
	fmt.Println("Installation complete!")
	fmt.Println("\nRestart the browser for the extension to connect.")

	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	inst, err := installer.New()
	if err != nil {
		return fmt.Errorf("failed to create installer: %w", err)
	}

	if !inst.IsInstalled() {
		fmt.Println("Native host is not installed.")
		return nil
	}

	fmt.Println("Uninstalling tab monitor native host...")

	if err := inst.Uninstall(); err != nil {
		return fmt.Errorf("uninstallation failed: %w", err)
	}

	fmt.Println("Uninstallation complete!")
	return nil
}

func runDebugCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := monitor.NewLogger("STDERR")
	if err != nil {
		return err
	}
	checker := reputation.NewChecker(cfg.SafeBrowsingURL, cfg.SafeBrowsingKey,
		cfg.ClientID, cfg.ClientVersion, cfg.ReputationTimeout, logger)

	threat, err := checker.Lookup(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	if threat == "" {
		fmt.Printf("%s: no threats found\n", args[0])
	} else {
		fmt.Printf("%s: flagged as %s\n", args[0], threat)
	}
	return nil
}

func runDebugSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	client := sender.NewClient(cfg.CollectorURL, cfg.Timeout, cfg.Compress)

	now := time.Now()
	record := dto.NewSaveActivity("https://example.com/test", "Test Page", now.Add(-30*time.Second), now)

	fmt.Printf("Sending test record to %s...\n", client.Endpoint())

	resp, err := client.Send(cmd.Context(), record)
	if err != nil {
		if code := sender.StatusCode(err); code != 0 {
			fmt.Printf("  HTTP status: %d\n", code)
		}
		return fmt.Errorf("failed to send: %w", err)
	}

	data, _ := json.MarshalIndent(resp, "  ", "  ")
	fmt.Printf("\nResponse:\n  %s\n", data)
	return nil
}

func runDebugState(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	mgr, err := openStorage(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("State file: %s\n\n", mgr.GetStateFilePath())

	keys := mgr.Keys()
	if len(keys) == 0 {
		fmt.Println("No stored keys (first run or storage cleared)")
		return nil
	}

	for _, key := range keys {
		var raw json.RawMessage
		if _, err := mgr.Get(key, &raw); err != nil {
			fmt.Printf("  %s: <unreadable: %v>\n", key, err)
			continue
		}
		fmt.Printf("  %s: %s\n", key, raw)
	}

	return nil
}

func runDebugDiscovery(cmd *cobra.Command, args []string) error {
	fmt.Println(config.FormatDiscoveryDocs())

	result := config.Discover()
	if result == nil {
		fmt.Println("Discovery server not reachable.")
		return nil
	}

	fmt.Printf("Collector URL: %s\n", result.CollectorURL)
	if result.SafeBrowsingKey != "" {
		fmt.Println("Safe Browsing key: provided")
	} else {
		fmt.Println("Safe Browsing key: not provided")
	}
	return nil
}
