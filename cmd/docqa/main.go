package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/render"
	"docqa/internal/service"
	"docqa/internal/tui"
)

var errQueryFailed = errors.New("query failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errQueryFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	docsDir    string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "docqa",
		Short:         "Ask questions about a directory of documents",
		Long:          "docqa indexes the documents in a directory and answers questions with an excerpt, a summary and an AI supplement.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInteractive(cmd.Context(), flags)
		},
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to YAML config (default ./config.yaml or ~/.config/docqa/config.yaml)")
	cmd.PersistentFlags().StringVarP(&flags.docsDir, "docs", "d", "", "Document directory, overrides documents.dir")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.AddCommand(newAskCommand(flags), newIndexCommand(flags), newConfigCommand())
	return cmd
}

func newAskCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			session, err := ingest(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			res := session.Respond(cmd.Context(), strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), render.Plain(res))
			if res.Kind == domain.ResultFailed {
				return errQueryFailed
			}
			return nil
		},
	}
}

func newIndexCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the index snapshot from the document directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			cfg.Index.Reuse = false
			session, err := service.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			report, err := session.Ingest(cmd.Context(), cfg.Documents.Dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d chunks from %d documents in %s\n", report.Chunks, report.Documents, report.Dir)
			if report.Chunks > 0 {
				fmt.Fprintf(out, "Index saved to %s\n", cfg.Index.Dir)
			}
			return nil
		},
	}
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var (
		path  string
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := path
			if target == "" {
				p, err := config.DefaultUserConfigPath()
				if err != nil {
					return err
				}
				target = p
			}
			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}
			if err := config.Save(target, config.Template()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&path, "path", "p", "", "Destination (default ~/.config/docqa/config.yaml)")
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func runInteractive(ctx context.Context, flags *globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = "qa.log"
	}
	f, err := logger.OpenFile(logPath)
	if err != nil {
		return err
	}
	defer f.Close()
	closeLog, err := setupLogging(cfg, f)
	if err != nil {
		return err
	}
	defer closeLog()

	fmt.Fprintf(os.Stderr, "Loading documents from %s...\n", cfg.Documents.Dir)
	session, err := ingest(ctx, cfg)
	if err != nil {
		return err
	}
	m := tui.New(ctx, session, session.Overview())
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func loadConfig(flags *globalFlags) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.docsDir != "" {
		cfg.Documents.Dir = flags.docsDir
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	return cfg, nil
}

// setupLogging sends logs to out unless a log file is configured and out is stderr.
func setupLogging(cfg *config.AppConfig, out io.Writer) (func(), error) {
	closeFn := func() {}
	if out == os.Stderr && cfg.Logging.File != "" {
		f, err := logger.OpenFile(cfg.Logging.File)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stderr, f)
		closeFn = func() { _ = f.Close() }
	}
	logger.Init(&logger.Config{
		Level:      logger.LogLevel(cfg.Logging.Level),
		Output:     out,
		JSON:       cfg.Logging.JSON,
		TimeFormat: "2006-01-02 15:04:05",
	})
	return closeFn, nil
}

func ingest(ctx context.Context, cfg *config.AppConfig) (*service.Session, error) {
	session, err := service.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := session.Ingest(ctx, cfg.Documents.Dir); err != nil {
		return nil, err
	}
	return session, nil
}
