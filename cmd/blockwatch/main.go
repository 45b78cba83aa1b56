package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/closecrowd/blockwatch/internal/adapters/block"
	"github.com/closecrowd/blockwatch/internal/adapters/classify"
	"github.com/closecrowd/blockwatch/internal/adapters/input"
	"github.com/closecrowd/blockwatch/internal/adapters/output"
	"github.com/closecrowd/blockwatch/internal/app"
	"github.com/closecrowd/blockwatch/internal/ports"
)

var (
	cfgFile string
	verbose bool

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "blockwatch",
	Short: "Real-time intrusion response daemon",
	Long: `Blockwatch tails a server log, classifies attack attempts, inserts the
offending addresses into a kernel blocklist set, and keeps a rotatable CSV
audit trail of every blocked event.

Watchers:
  auth   follows the authentication log (invalid users, disallowed users,
         protocol handshake errors)
  web    follows a combined-format access log (4xx responses)

Send SIGHUP to rotate the audit log; SIGINT/SIGTERM shut down cleanly.`,
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Watch the authentication log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatcher(app.AuthConfig(viper.GetViper()), classify.AuthChain(), true)
	},
}

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Watch the web access log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatcher(app.WebConfig(viper.GetViper()), classify.WebChain(), false)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("blockwatch %s\n", Version)
		fmt.Printf("Commit:  %s\n", Commit)
		fmt.Printf("Built:   %s\n", BuildTime)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringP("log", "l", "", "log file to follow")
	rootCmd.PersistentFlags().StringP("set", "s", "", "blocklist set name (empty disables blocking)")
	rootCmd.PersistentFlags().StringP("audit", "a", "", "audit log path (empty disables the audit trail)")
	rootCmd.PersistentFlags().String("pidfile", "", "pid file path")
	rootCmd.PersistentFlags().String("home", "", "allow-listed address that is never blocked")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "echo every observed line to stderr")

	viper.BindPFlag("log.path", rootCmd.PersistentFlags().Lookup("log"))
	viper.BindPFlag("blocklist.set", rootCmd.PersistentFlags().Lookup("set"))
	viper.BindPFlag("audit.path", rootCmd.PersistentFlags().Lookup("audit"))
	viper.BindPFlag("pidfile", rootCmd.PersistentFlags().Lookup("pidfile"))
	viper.BindPFlag("home_address", rootCmd.PersistentFlags().Lookup("home"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/blockwatch")
	}

	app.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("error reading config file")
		}
	}

	viper.SetEnvPrefix("BLOCKWATCH")
	viper.AutomaticEnv()
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch viper.GetString("logging.level") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}

func runWatcher(cfg app.Config, chain app.Classifier, allowVerbose bool) error {
	setupLogging()

	if cfg.LogPath == "" {
		return fmt.Errorf("log file path required: use --log or set log.path")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pid := app.NewPidFile(cfg.PidFilePath)
	if err := pid.Write(); err != nil {
		return err
	}
	defer pid.Remove()

	audit, err := output.NewAuditLog(cfg.AuditPath)
	if err != nil {
		return err
	}
	defer audit.Close()

	tailer := input.NewTailer(cfg.LogPath, cfg.PollTimeout)
	if err := tailer.Start(); err != nil {
		return fmt.Errorf("start tailing %s: %w", cfg.LogPath, err)
	}
	defer tailer.Stop()

	sink := block.NewIPSet(block.Config{
		SetName:     cfg.SetName,
		HomeAddress: cfg.HomeAddress,
		Timeout:     cfg.BlockTimeout,
	})

	var obs ports.Observer
	var metrics *output.Metrics
	if cfg.MetricsAddr != "" {
		metrics = output.NewMetrics("blockwatch")
		metrics.StartServer(cfg.MetricsAddr)
		defer metrics.StopServer()
		obs = metrics
	}

	watcher := app.NewWatcher(app.WatcherOptions{
		Source:      tailer,
		Chain:       chain,
		Blocker:     sink,
		Resolver:    net.DefaultResolver,
		Audit:       audit,
		Observer:    obs,
		ResolveWait: cfg.ResolveWait,
		Verbose:     allowVerbose && (verbose || cfg.Verbose),
	})

	// Only the allow-listed address and the verbose echo follow the config
	// file live; everything structural needs a restart.
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("config changed, reloading runtime settings")
		sink.SetHomeAddress(viper.GetString("home_address"))
		watcher.SetVerbose(allowVerbose && viper.GetBool("verbose"))
	})
	viper.WatchConfig()

	log.Info().
		Str("source", cfg.LogPath).
		Str("set", cfg.SetName).
		Str("audit", cfg.AuditPath).
		Str("version", Version).
		Msg("blockwatch started")

	return watcher.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
