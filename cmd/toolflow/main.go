package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"toolflow/internal/agent"
	"toolflow/internal/config"
	"toolflow/internal/engine"
	"toolflow/internal/llm"
	"toolflow/internal/render"
	"toolflow/internal/session"
	"toolflow/internal/tools"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "toolflow [message]",
		Short:         "toolflow - tool-calling conversation runner",
		Long:          "Runs tool-calling conversations against an OpenAI-compatible API.\nWith a message argument it runs one turn and exits; without one it\nreads turns from stdin against a single session.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}

			apiKey := os.Getenv("OPENROUTER_API_KEY")
			if apiKey == "" {
				apiKey = os.Getenv("OPENAI_API_KEY")
			}
			mockMode := os.Getenv("TOOLFLOW_MOCK_LLM") == "1"
			if apiKey == "" && !mockMode {
				fmt.Fprintln(os.Stderr, "OPENROUTER_API_KEY is required")
				os.Exit(2)
			}

			logger := buildLogger(cfg.Verbose)
			defer func() { _ = logger.Sync() }()

			registry, err := buildRegistry(cfg)
			if err != nil {
				return err
			}

			var client llm.Client
			if mockMode {
				client = llm.NewMockClient()
			} else {
				client = llm.NewOpenRouterClient(apiKey, cfg.BaseURL, cfg.HTTPReferer, cfg.Title)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			store := session.NewStore(cfg.SessionTTL, logger)
			store.StartSweeper(ctx, cfg.SessionTTL/2)

			sessionID, _ := cmd.Flags().GetString("session")
			exportPath, _ := cmd.Flags().GetString("export")
			sess := store.GetOrCreate(sessionID)

			eng := engine.New(registry, logger, engine.Options{
				MaxParallel:    cfg.MaxParallelTools,
				CallTimeout:    cfg.ToolTimeout,
				ResultMaxBytes: cfg.ToolLimits.ResultMaxBytes,
			})

			writer := io.Writer(os.Stdout)
			var logFile *os.File
			if cfg.LogFile != "" {
				file, err := os.Create(cfg.LogFile)
				if err != nil {
					return err
				}
				logFile = file
				writer = io.MultiWriter(os.Stdout, logFile)
				defer logFile.Close()
			}

			var renderer *render.StdoutRenderer
			if !cfg.JSON {
				renderer = render.NewStdoutRenderer(writer, cfg.Verbose, cfg.Quiet)
				defer renderer.Close()
			}
			var loop *agent.Loop
			if renderer != nil {
				loop = agent.NewLoop(client, registry, eng, renderer, logger, cfg)
			} else {
				loop = agent.NewLoop(client, registry, eng, nil, logger, cfg)
			}

			var runErr error
			if len(args) > 0 {
				runErr = runOnce(ctx, loop, sess, strings.Join(args, " "), cfg)
			} else {
				runErr = runREPL(ctx, loop, sess, cfg)
			}

			if exportPath != "" {
				if err := exportSession(sess, exportPath); err != nil {
					logger.Warn("failed to export session", zap.Error(err))
				}
			}
			return runErr
		},
	}

	cmd.Flags().String("model", config.DefaultModel, "Model name")
	cmd.Flags().Int("max-rounds", config.DefaultMaxRounds, "Maximum model/tool rounds per turn")
	cmd.Flags().String("timeout", config.DefaultTimeout.String(), "Per-turn timeout (e.g. 60s)")
	cmd.Flags().Bool("stream", false, "Stream assistant text as it arrives")
	cmd.Flags().Bool("quiet", false, "Only print final answers")
	cmd.Flags().Bool("json", false, "Output JSON only")
	cmd.Flags().Bool("verbose", false, "Enable verbose logging")
	cmd.Flags().String("log-file", "", "Write plain-text output to a file")
	cmd.Flags().Bool("no-web", false, "Disable the web_fetch tool")
	cmd.Flags().String("session", "", "Session ID to continue (default: new session)")
	cmd.Flags().String("export", "", "Write the session audit document to a file on exit")

	return cmd
}

func buildRegistry(cfg config.Config) (*tools.Registry, error) {
	calc, err := tools.NewCalcTool()
	if err != nil {
		return nil, fmt.Errorf("build calculate tool: %w", err)
	}
	toolList := []tools.Tool{
		calc,
		tools.NewWeatherTool(),
		tools.NewDatabaseTool(),
		tools.NewClockTool(),
	}
	if !cfg.NoWeb {
		toolList = append(toolList, tools.NewWebFetchTool())
	}
	return tools.NewRegistry(toolList...)
}

func runOnce(ctx context.Context, loop *agent.Loop, sess *session.Session, message string, cfg config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	result, err := loop.Run(ctx, sess, message)
	if cfg.JSON {
		payload, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(os.Stdout, string(payload))
	}
	return err
}

// runREPL reads one message per line from stdin and runs each against the
// same session, so follow-up turns see earlier answers.
func runREPL(ctx context.Context, loop *agent.Loop, sess *session.Session, cfg config.Config) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	interactive := isTerminal(os.Stdin)

	for {
		if interactive {
			fmt.Fprint(os.Stdout, "> ")
		}
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "exit" || message == "quit" {
			break
		}
		if err := runOnce(ctx, loop, sess, message, cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func exportSession(sess *session.Session, path string) error {
	doc, err := sess.Export()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, doc, 0o600)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func buildLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
