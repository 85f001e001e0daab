package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/niels/tinyhttpd/pkg/accesslog"
	"github.com/niels/tinyhttpd/pkg/config"
	"github.com/niels/tinyhttpd/pkg/logging"
	"github.com/niels/tinyhttpd/pkg/metrics"
	"github.com/niels/tinyhttpd/pkg/server"
	"github.com/niels/tinyhttpd/pkg/version"
	"github.com/spf13/cobra"
)

var (
	configPath     string
	directory      string
	address        string
	maxConnections int
	debug          bool
	showVersion    bool
	cfg            *config.Config
)

// NewRootCmd creates the root command for tinyhttpd
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   version.AppName,
		Short: version.Description,
		Long: fmt.Sprintf(`%s - %s

Serves /, /echo/<text>, /user-agent and /files/<name> over HTTP/1.1,
one request per connection.
`, version.AppName, version.Description),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				cfg = config.LoadOrDefault(configPath)
			} else {
				cfg = config.Default()
			}

			logging.InitGlobalLogger(debug, &cfg.Logging)
			logging.Info("Initializing tinyhttpd")
			if debug {
				logging.Debug("Debug logging enabled")
			}
			if configPath != "" {
				logging.InfoWith("Configuration loaded", map[string]interface{}{
					"path": configPath,
				})
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetVersionInfo())
				return nil
			}

			// Flags win over the file and the environment
			if cmd.Flags().Changed("directory") {
				cfg.Server.Directory = directory
			}
			if cmd.Flags().Changed("address") {
				cfg.Server.Address = address
			}
			if cmd.Flags().Changed("max-connections") {
				cfg.Server.MaxConnections = maxConnections
			}

			if err := cfg.Validate(); err != nil {
				logging.ErrorWith("Invalid configuration", map[string]interface{}{
					"error": err.Error(),
				})
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if cfg.Server.Directory == "" {
				logging.Warn("No directory configured, /files/ requests will not be served")
			}
			if cfg.Server.AllowUnsafePaths {
				logging.Warn("Path checks disabled, file names may escape the directory")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cmd, cfg)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug mode")
	rootCmd.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	rootCmd.Flags().StringVar(&directory, "directory", "", "Directory served under /files/ (overrides config)")
	rootCmd.Flags().StringVarP(&address, "address", "a", "", "Address to listen on (overrides config)")
	rootCmd.Flags().IntVar(&maxConnections, "max-connections", 0, "Maximum concurrent connections, 0 for unbounded (overrides config)")

	return rootCmd
}

// run starts the optional metrics endpoint and serves until ctx is done
func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
		go func() {
			logging.InfoWith("Serving metrics", map[string]interface{}{
				"address": cfg.Metrics.Address,
			})
			if err := collector.Serve(ctx, cfg.Metrics.Address); err != nil {
				logging.ErrorWith("Metrics endpoint failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	var recorder accesslog.Recorder = accesslog.Discard{}
	if !cfg.AccessLog.Disable {
		console := accesslog.NewConsoleRecorder().WithWriter(cmd.OutOrStdout())
		if cfg.AccessLog.NoColor {
			console = console.WithoutColor()
		}
		recorder = console
	}

	srv, err := server.New(cfg, collector, recorder)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.ListenAndServe(ctx); err != nil {
		logging.ErrorWith("Server failed", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	logging.Info("Server stopped")
	return nil
}

// Execute runs the root command and exits with status 1 on error
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
