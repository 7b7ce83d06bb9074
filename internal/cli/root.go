// Package cli is the terminal host for the sustainability checker: it plays the
// role of the browser extension, extracting products from pages and showing scores.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ecoshop/ecoshop/config"
	"github.com/ecoshop/ecoshop/internal/coordinator"
	"github.com/ecoshop/ecoshop/internal/extractor"
	"github.com/ecoshop/ecoshop/internal/gateway"
	"github.com/ecoshop/ecoshop/internal/logging"
	"github.com/ecoshop/ecoshop/internal/settings"
)

// Version of the client host
const Version = "1.0.0"

// app carries what every command needs once configuration is loaded
type app struct {
	backendURL   string
	settingsPath string
	verbose      bool
	logFormat    string

	cfg    *config.ClientConfig
	logger *logrus.Logger
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ecoshop",
		Short: "EcoShop - sustainability scores for e-commerce products",
		Long: `EcoShop reads a product page, extracts the brand, name and specifications,
and asks the EcoShop service for a sustainability score.

The composite score runs from 0 to 100 and is broken down into
production & brand, circularity & end of life, and material composition.
Category weights are personal and stored locally.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.backendURL, "backend", "", "backend URL (default from ECOSHOP_CLIENT_BACKEND_URL or http://localhost:5000)")
	rootCmd.PersistentFlags().StringVar(&a.settingsPath, "settings", "", "settings file (default: ~/.ecoshop/settings.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(
		newCheckCmd(a),
		newWatchCmd(a),
		newExtractCmd(a),
		newWeightsCmd(a),
		newBrandCmd(a),
		newHealthCmd(a),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// version needs no configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ecoshop v%s\n", Version)
		},
	}
}

// load reads the client configuration and applies flag overrides
func (a *app) load(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFile(); err != nil {
		return err
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	client := cfg.Client
	if a.backendURL != "" {
		client.BackendURL = a.backendURL
	}
	if a.settingsPath != "" {
		client.SettingsPath = a.settingsPath
	}
	a.cfg = &client

	level := cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	format := cfg.Log.Format
	if a.logFormat != "" {
		format = a.logFormat
	}
	a.logger = logging.NewWithOutput(level, format, cmd.ErrOrStderr())

	a.logger.WithFields(logrus.Fields{
		"backend":  client.BackendURL,
		"settings": client.SettingsPath,
	}).Debug("Configuration loaded")
	return nil
}

func (a *app) gatewayClient() *gateway.Client {
	return gateway.NewClient(gateway.Config{
		BaseURL:           a.cfg.BackendURL,
		SubmitTimeout:     a.cfg.SubmitTimeout,
		PollInterval:      a.cfg.PollInterval,
		PollAttempts:      a.cfg.PollAttempts,
		UseStream:         a.cfg.UseStream,
		RequestsPerSecond: a.cfg.RequestsPerSecond,
		UserAgent:         a.cfg.UserAgent,
	}, a.logger)
}

func (a *app) openSettings() (*settings.Store, error) {
	return settings.Open(a.cfg.SettingsPath, a.logger)
}

// newCoordinator wires the gateway, the terminal badge and the user's weights
func (a *app) newCoordinator(weights coordinator.WeightsSource) *coordinator.Coordinator {
	return coordinator.New(
		a.gatewayClient(),
		terminalBadge{logger: a.logger},
		terminalNotifier{logger: a.logger},
		weights,
		coordinator.Config{TabCacheTTL: a.cfg.TabCacheTTL},
		a.logger,
	)
}

func (a *app) extractor() *extractor.Extractor {
	return extractor.New(extractor.DefaultConfig())
}

// looksLikeURL reports whether target should be fetched rather than read from disk
func looksLikeURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// syncWriter serializes writes from concurrent result callbacks
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
