// COSINT is a congressional research agent.
//
// It answers questions about members of Congress, legislation, and
// campaign finance by reasoning over live government data sources
// (Congress.gov, Google Civic Information, the FEC, and web search),
// and keeps a per-user research notebook of member pages, tracked
// bills, and notes. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	cosint serve             Start the API server
//	cosint init [dir]        Initialize a working directory with defaults
//	cosint ask <question>    Ask a single question (for testing)
//	cosint version           Print version and build information
//	cosint -o json version   Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cosintapp/cosint/internal/agent"
	"github.com/cosintapp/cosint/internal/api"
	"github.com/cosintapp/cosint/internal/auth"
	"github.com/cosintapp/cosint/internal/brave"
	"github.com/cosintapp/cosint/internal/buildinfo"
	"github.com/cosintapp/cosint/internal/civic"
	"github.com/cosintapp/cosint/internal/config"
	"github.com/cosintapp/cosint/internal/congress"
	"github.com/cosintapp/cosint/internal/fec"
	"github.com/cosintapp/cosint/internal/intel"
	"github.com/cosintapp/cosint/internal/llm"
	"github.com/cosintapp/cosint/internal/store"
	"github.com/cosintapp/cosint/internal/tools"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run] so the full
// startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the cosint command. All OS-level
// dependencies are injected as parameters: ctx controls process
// lifetime, stdout and stderr receive program output, and args is
// os.Args[1:]. Arguments are parsed by hand; the flag package relies
// on package-level globals that interfere with parallel tests, and
// the argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: cosint ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "COSINT - Congressional Research Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: cosint [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/cosint/config.yaml, /etc/cosint/config.yaml")
	return nil
}

// defaultConfigTemplate is written by `cosint init`. Keys with empty
// values must be filled in before the server is useful.
const defaultConfigTemplate = `# COSINT configuration
listen:
  port: 8000

openai:
  api_key: ${OPENAI_API_KEY}
  model: gpt-4o-mini

# api.data.gov key. Authenticates both Congress.gov and FEC requests.
congress:
  api_key: ${CONGRESS_API_KEY}

civic:
  api_key: ${GOOGLE_CIVIC_API_KEY}

brave:
  api_key: ${BRAVE_API_KEY}

auth:
  issuer_url: ${AUTH_ISSUER_URL}

agent:
  max_iterations: 15
  message_retention: 10

data_dir: ./data
log_level: info
`

// runInit writes a starter config.yaml into dir. It refuses to
// overwrite an existing file.
func runInit(stdout io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(stdout, "Wrote %s\n", path)
	fmt.Fprintln(stdout, "Fill in the API keys (or export the referenced environment variables), then run: cosint serve")
	return nil
}

// runAsk handles the "cosint ask <question>" subcommand. It boots the
// tool registry and agent loop without the HTTP server or any
// persistence, asks a single question, and streams the answer to
// stdout. Useful for smoke tests and debugging.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn, "text")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")

	llmClient := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)
	registry := buildRegistry(cfg, logger)
	executor := agent.NewExecutor(logger, llmClient, registry, cfg.OpenAI.Model, cfg.Agent.MaxIterations)

	_, err = executor.Run(ctx, agent.Request{Message: question}, func(ev llm.StreamEvent) {
		switch ev.Kind {
		case llm.KindToken:
			fmt.Fprint(stdout, ev.Token)
		case llm.KindToolCallStart:
			if ev.ToolCall != nil {
				fmt.Fprintf(stdout, "\n[tool: %s]\n", ev.ToolCall.Function.Name)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout)
	return nil
}

// runServe handles the "cosint serve" subcommand. It is the primary
// operating mode: loads config, opens the notebook database, wires the
// data source clients into the tool registry, starts the API server,
// and blocks until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting COSINT", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level and format are
	// known. The initial Info-level text logger covers only the startup
	// banner and config discovery.
	{
		level := slog.LevelInfo
		if cfg.LogLevel != "" {
			level, err = config.ParseLogLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
		}
		logger = newLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.OpenAI.Model,
	)

	if cfg.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if cfg.Auth.IssuerURL == "" {
		return fmt.Errorf("auth.issuer_url is required")
	}

	// All persistent state (the notebook SQLite database) lives under
	// the data directory.
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	dbPath := filepath.Join(cfg.DataDir, "cosint.db")
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open notebook database %s: %w", dbPath, err)
	}
	defer st.Close()
	logger.Info("notebook database opened", "path", dbPath)

	llmClient := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)
	if err := llmClient.Ping(ctx); err != nil {
		logger.Warn("inference provider unreachable at startup", "error", err)
	}

	registry := buildRegistry(cfg, logger)
	logger.Info("tool registry built", "tools", len(registry.List()))

	executor := agent.NewExecutor(logger, llmClient, registry, cfg.OpenAI.Model, cfg.Agent.MaxIterations)
	extractor := intel.NewExtractor(logger, llmClient, cfg.OpenAI.Model)

	verifier := auth.NewJWKSVerifier(logger, cfg.Auth.IssuerURL,
		time.Duration(cfg.Auth.JWKSTTLMinutes)*time.Minute)

	// The dashboards talk to Congress.gov directly, outside the tool
	// registry.
	var congressClient *congress.Client
	if cfg.Congress.APIKey != "" {
		congressClient = congress.NewClient(cfg.Congress.APIKey, logger)
	}

	server := api.NewServer(logger, api.Options{
		Listen:    fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port),
		Verifier:  verifier,
		Store:     st,
		Executor:  executor,
		Extractor: extractor,
		Congress:  congressClient,
		LLM:       llmClient,
		Model:     cfg.OpenAI.Model,
		Retention: cfg.Agent.MessageRetention,
	})

	// Block until the server fails or a shutdown signal arrives.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// buildRegistry wires the configured data source clients into the tool
// registry. Clients without an API key are left nil; the registry skips
// their tools, and the agent works with whatever sources remain.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *tools.Registry {
	var congressClient *congress.Client
	var civicClient *civic.Client
	var braveClient *brave.Client
	var fecClient *fec.Client

	if cfg.Congress.APIKey != "" {
		congressClient = congress.NewClient(cfg.Congress.APIKey, logger)
		// The api.data.gov key is shared between Congress.gov and the FEC.
		fecClient = fec.NewClient(cfg.Congress.APIKey, logger)
	} else {
		logger.Warn("congress.api_key not set - legislative tools unavailable")
	}
	if cfg.Civic.APIKey != "" {
		civicClient = civic.NewClient(cfg.Civic.APIKey, logger)
	}
	if cfg.Brave.APIKey != "" {
		braveClient = brave.NewClient(cfg.Brave.APIKey, logger)
	}

	return tools.NewRegistry(congressClient, civicClient, braveClient, fecClient)
}

// newLogger builds a structured logger writing to w.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used (and must exist).
// Otherwise [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
