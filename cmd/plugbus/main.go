package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/plugbus/internal/api"
	"github.com/mattjoyce/plugbus/internal/auth"
	"github.com/mattjoyce/plugbus/internal/config"
	"github.com/mattjoyce/plugbus/internal/host"
	"github.com/mattjoyce/plugbus/internal/lock"
	"github.com/mattjoyce/plugbus/internal/log"
	"github.com/mattjoyce/plugbus/internal/telemetry"
	"github.com/mattjoyce/plugbus/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "tenant":
		return runTenantNoun(args)
	case "component":
		return runComponentNoun(args)
	case "channel":
		return runChannelNoun(args)

	// --- ROOT ALIASES ---
	case "start":
		return runStart(args)
	case "send":
		return runSend(args)
	case "doctor":
		return runConfigCheck(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: plugbus version [--json]")
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		return printJSON(info)
	}

	fmt.Printf("plugbus %s\n", info.Version)
	fmt.Printf("platform: %s\n", config.DefaultPlatformVersion)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`plugbus - Multi-tenant plugin dispatch host

Usage:
  plugbus <noun> <action> [flags]

Core Resources (Nouns):
  system     Host lifecycle
  config     Configuration and integrity
  tenant     Tenants and the components enabled for them
  component  Installed components
  channel    Channels and their handlers

System Commands:
  system start              Start the host, API and webhook listeners in foreground

Config Commands:
  config check              Validate configuration, tenants and integrity
  config lock               Write .checksums for every config file
  config show               Print the resolved configuration

Tenant Commands:
  tenant list               List tenants and enabled components
  tenant create <id>        Create or rename a tenant
  tenant enable <id> <c>    Enable an optional component for a tenant
  tenant disable <id> <c>   Disable an optional component for a tenant

Component / Channel Commands:
  component list            Show installed components and compatibility
  channel list              Show channels, handlers and owners

Dispatch:
  send <channel> --tenant <id> [--payload JSON | --payload-file path]

General:
  version                   Show version information
  help                      Show this help message

Every command accepts --config <path> (file or directory).
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: plugbus system start [--config PATH]")
		return boolCode(len(args) < 1)
	}
	switch args[0] {
	case "start":
		return runStart(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: plugbus config <check|lock|show> [--config PATH]")
		return boolCode(len(args) < 1)
	}
	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "lock":
		return runConfigLock(args[1:])
	case "show":
		return runConfigShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func runTenantNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: plugbus tenant <list|create|enable|disable> [args] [--config PATH]")
		return boolCode(len(args) < 1)
	}
	switch args[0] {
	case "list":
		return runTenantList(args[1:])
	case "create":
		return runTenantCreate(args[1:])
	case "enable":
		return runTenantToggle(args[1:], true)
	case "disable":
		return runTenantToggle(args[1:], false)
	default:
		fmt.Fprintf(os.Stderr, "Unknown tenant action: %s\n", args[0])
		return 1
	}
}

func runComponentNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: plugbus component list [--json] [--config PATH]")
		return boolCode(len(args) < 1)
	}
	if args[0] != "list" {
		fmt.Fprintf(os.Stderr, "Unknown component action: %s\n", args[0])
		return 1
	}
	return runComponentList(args[1:])
}

func runChannelNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: plugbus channel list [--json] [--config PATH]")
		return boolCode(len(args) < 1)
	}
	if args[0] != "list" {
		fmt.Fprintf(os.Stderr, "Unknown channel action: %s\n", args[0])
		return 1
	}
	return runChannelList(args[1:])
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func boolCode(failed bool) int {
	if failed {
		return 1
	}
	return 0
}

// --- START ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("plugbus starting", "version", version, "config", resolved, "platform", cfg.Platform.Version)

	stateLock, err := lock.Acquire(cfg.State.Path)
	if err != nil {
		logger.Error("failed to acquire state lock (another instance may be running)", "path", lock.PathFor(cfg.State.Path), "error", err)
		return 1
	}
	defer stateLock.Release()
	logger.Info("acquired state lock", "path", stateLock.Path())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Service.Name, version, cfg.Telemetry.Endpoint)
	if err != nil {
		logger.Error("failed to set up tracing", "endpoint", cfg.Telemetry.Endpoint, "error", err)
		return 1
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	h, err := host.Open(ctx, cfg)
	if err != nil {
		logger.Error("failed to open host", "error", err)
		return 1
	}
	defer h.Close()
	logger.Info("host ready",
		"components", h.Components.Len(),
		"channels", len(h.Channels.Channels()),
		"incompatible", len(h.Findings),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 2)
	apiDone := make(chan struct{})
	if cfg.API.Enabled {
		tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
		for _, t := range cfg.API.Auth.Tokens {
			tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
		}
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
			Tokens: tokens,
		}, api.Deps{
			Components:   h.Components,
			Channels:     h.Channels,
			Owners:       h.Resolver,
			Tenants:      h.Tenants,
			Restrictions: h.Restrictions,
			Sender:       h,
			Engine:       h.Engine,
			Events:       h.Events,
		}, log.WithComponent("api"))
		go func() {
			defer close(apiDone)
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	} else {
		close(apiDone)
		logger.Info("API server disabled")
	}

	webhookDone := make(chan struct{})
	if cfg.Webhooks != nil && len(cfg.Webhooks.Endpoints) > 0 {
		webhookConfig, err := webhook.FromGlobalConfig(cfg.Webhooks)
		if err != nil {
			logger.Error("failed to configure webhooks", "error", err)
			return 1
		}
		webhookServer := webhook.New(webhookConfig, h, log.WithComponent("webhook"))
		go func() {
			defer close(webhookDone)
			if err := webhookServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("webhook: %w", err)
			}
		}()
		logger.Info("webhook server enabled", "listen", cfg.Webhooks.Listen, "endpoints", len(webhookConfig.Endpoints))
	} else {
		close(webhookDone)
	}

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	cancel()
	<-apiDone
	<-webhookDone
	logger.Info("plugbus stopped")
	return 0
}

// --- SHARED HELPERS ---

// loadConfig resolves configPath (discovering it when empty) and loads it.
func loadConfig(configPath string) (*config.Config, string, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, "", err
		}
		configPath = discovered
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configPath, err
	}
	return cfg, configPath, nil
}

// openHost loads configuration and opens a Host for a one-shot command.
func openHost(ctx context.Context, configPath string) (*host.Host, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log.SetupCLI(cfg.Service.LogLevel)
	return host.Open(ctx, cfg)
}

func openHostFromConfig(cfg *config.Config) (*host.Host, error) {
	log.SetupCLI(cfg.Service.LogLevel)
	return host.Open(context.Background(), cfg)
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}
