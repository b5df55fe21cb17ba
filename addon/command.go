package addon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pulivilizator/billmgr-addon/internal/config"
	"github.com/pulivilizator/billmgr-addon/internal/observability"
	"github.com/pulivilizator/billmgr-addon/internal/transport"
	"github.com/pulivilizator/billmgr-addon/processing"
)

// ConfigEnv names the config file when --config is not given.
const ConfigEnv = config.EnvPrefix + "CONFIG"

// gatewayEnv is set by web servers for every CGI invocation.
const gatewayEnv = "GATEWAY_INTERFACE"

// Run executes the plugin command line and returns the process exit code.
// The panel starts processing modules with --command as the first argument;
// such invocations run the processing subcommand.
func Run(name string, setup Setup) int {
	cmd := NewCommand(name, setup)
	cmd.SetArgs(commandArgs(os.Args[1:]))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func commandArgs(args []string) []string {
	if len(args) > 0 && (args[0] == "--command" || strings.HasPrefix(args[0], "--command=")) {
		return append([]string{"processing"}, args...)
	}
	return args
}

type rootFlags struct {
	configPath string
}

// NewCommand builds the plugin command tree. Invoked without a subcommand
// under a CGI environment, it answers that request.
func NewCommand(name string, setup Setup) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           name,
		Short:         fmt.Sprintf("%s BILLmanager plugin", name),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			environ := os.Environ()
			if os.Getenv(gatewayEnv) == "" && !transport.IsPanelEnv(environ) {
				return cmd.Help()
			}
			return runCGI(cmd.Context(), flags, name, setup, environ, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	defaultConfig := os.Getenv(ConfigEnv)
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", defaultConfig, "path to configuration file (yaml or toml)")

	root.AddCommand(
		newServeCommand(flags, name, setup),
		newCGICommand(flags, name, setup),
		newProcessingCommand(flags, name, setup),
		newVersionCommand(name),
	)
	return root
}

func newServeCommand(flags *rootFlags, name string, setup Setup) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the plugin over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return runServe(ctx, flags, name, setup, nil)
		},
	}
}

func newCGICommand(flags *rootFlags, name string, setup Setup) *cobra.Command {
	return &cobra.Command{
		Use:   "cgi",
		Short: "Answer one CGI request from the panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCGI(cmd.Context(), flags, name, setup, os.Environ(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newProcessingCommand(flags *rootFlags, name string, setup Setup) *cobra.Command {
	var args processing.Args
	cmd := &cobra.Command{
		Use:   "processing",
		Short: "Run one processing module command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProcessing(cmd.Context(), flags, name, setup, args, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&args.Command, "command", "", "command to run, e.g. features or open")
	f.StringVar(&args.Subcommand, "subcommand", "", "subcommand of the command")
	f.StringVar(&args.Module, "module", "", "processing module id")
	f.StringVar(&args.ItemType, "itemtype", "", "item type")
	f.Int64Var(&args.Item, "item", 0, "service id")
	f.Int64Var(&args.RunningOperation, "runningoperation", 0, "running operation id")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func newVersionCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", name, Version, Commit)
		},
	}
}

// loadConfig reads the config file, defaulting the plugin name. A missing
// file at the default location is not an error.
func loadConfig(flags *rootFlags, name string) (*config.Config, error) {
	base := config.Defaults()
	base.Plugin.Name = name

	path := flags.configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == "config.yaml" {
		path = ""
	}
	return config.LoadOver(base, path)
}

func setupLogger(flags *rootFlags, name string) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(flags, name)
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger.With(zap.String("plugin", cfg.Plugin.Name)), nil
}

func runCGI(ctx context.Context, flags *rootFlags, name string, setup Setup, environ []string, stdin io.Reader, stdout io.Writer) error {
	cfg, logger, err := setupLogger(flags, name)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger, setup)
	if err != nil {
		logger.Error("plugin initialization failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := a.close(context.Background()); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := transport.ServeCGI(ctx, a.router, logger, environ, stdin, stdout); err != nil {
		logger.Error("cgi request failed", zap.Error(err))
		return err
	}
	return nil
}

func runProcessing(ctx context.Context, flags *rootFlags, name string, setup Setup, args processing.Args, stdout io.Writer) error {
	cfg, logger, err := setupLogger(flags, name)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger, setup)
	if err != nil {
		logger.Error("plugin initialization failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := a.close(context.Background()); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	body, err := a.processing.Run(ctx, args)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(stdout, body); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}

// runServe serves until ctx is cancelled. A non-nil listener replaces the
// configured address.
func runServe(ctx context.Context, flags *rootFlags, name string, setup Setup, ln net.Listener) error {
	cfg, logger, err := setupLogger(flags, name)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger, setup)
	if err != nil {
		logger.Error("plugin initialization failed", zap.Error(err))
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if ln == nil {
		ln, err = net.Listen("tcp", srv.Addr)
		if err != nil {
			_ = a.close(context.Background())
			return fmt.Errorf("listen: %w", err)
		}
	}

	logger.Info("server started",
		zap.String("addr", ln.Addr().String()),
		zap.String("version", Version),
		zap.String("commit", Commit),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case serveErr = <-errCh:
		logger.Error("server error", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := a.close(shutdownCtx); err != nil {
		logger.Error("store shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return serveErr
}
