// Package cli provides the cobra command tree for modscan.
// The server command runs the scan service with its API and scheduler; the
// remaining commands are HTTP clients of a running server.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/modscan/internal/api/handlers"
	"github.com/anstrom/modscan/internal/config"
	"github.com/anstrom/modscan/internal/logging"
)

const (
	envPrefix            = "MODSCAN"
	defaultServerURL     = "http://127.0.0.1:8080"
	defaultClientTimeout = 30 * time.Second
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modscan",
		Short: "Modbus TCP scanner",
		Long: `modscan probes Modbus TCP endpoints for responding stations and readable
registers, coils and inputs. Run "modscan server" to start the scan service,
then submit and follow scans with the client commands.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().String("server", defaultServerURL, "base URL of a running modscan server")

	bindFlag(cmd, "verbose", "verbose")
	bindFlag(cmd, "server", "server")

	cmd.AddCommand(
		newServerCmd(),
		newScanCmd(),
		newStatusCmd(),
		newResultsCmd(),
		newStopCmd(),
		newTestConnectionCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", flag, err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// MODSCAN_SERVER, MODSCAN_API_PORT and friends override the file.
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	initLogging()
}

// setConfigDefaults sets defaults for client settings. Service settings keep
// the defaults of config.Default so only explicit overrides replace them.
func setConfigDefaults() {
	viper.SetDefault("server", defaultServerURL)
	viper.SetDefault("client_timeout", defaultClientTimeout)
}

// loadConfig reads the typed configuration and applies viper overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if viper.IsSet("api.listen_addr") {
		cfg.API.ListenAddr = viper.GetString("api.listen_addr")
	}
	if viper.IsSet("api.port") {
		cfg.API.Port = viper.GetInt("api.port")
	}
	if viper.IsSet("scanning.poll_interval") {
		cfg.Scanning.PollInterval = viper.GetDuration("scanning.poll_interval")
	}
	if viper.IsSet("logging.level") {
		cfg.Logging.Level = logging.LogLevel(viper.GetString("logging.level"))
	}
	if viper.IsSet("logging.format") {
		cfg.Logging.Format = logging.LogFormat(viper.GetString("logging.format"))
	}
	if viper.IsSet("logging.output") {
		cfg.Logging.Output = viper.GetString("logging.output")
	}
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		return
	}

	logCfg := cfg.Logging
	if verbose {
		logCfg.Level = logging.LevelDebug
		logCfg.AddSource = true
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
	handlers.SetBuildInfo(v, c, bt)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) error {
	_, err := fmt.Fprintf(w, "modscan %s\n", getVersion())
	return err
}
