package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	config "github.com/tupyy/rigctl/configuration"
	"github.com/tupyy/rigctl/internal/autostart"
	"github.com/tupyy/rigctl/internal/configuration"
	"github.com/tupyy/rigctl/internal/device"
	"github.com/tupyy/rigctl/internal/dispatch"
	"github.com/tupyy/rigctl/internal/history"
	"github.com/tupyy/rigctl/internal/metrics"
	"github.com/tupyy/rigctl/internal/profile"
	"github.com/tupyy/rigctl/internal/publisher"
	"github.com/tupyy/rigctl/internal/recorder"
	"github.com/tupyy/rigctl/internal/scheduler"
	"github.com/tupyy/rigctl/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

var (
	configFile string
	envFile    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "rigctl",
	Short: "Recipe driven setpoint scheduler for a lab rig",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("cannot load env file '%s': %w", envFile, err)
			}
		}
		return config.InitConfiguration(cmd, configFile)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		defer logger.Sync()

		undo := zap.ReplaceGlobals(logger)
		defer undo()

		return run()
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file")
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "file with environment variables")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.Flags().String("rig", "", "channel file of the rig")
	rootCmd.Flags().String("profile", "", "profile source selected at startup")
	rootCmd.Flags().String("sheet", profile.DefaultSheet, "workbook sheet holding the profile")
	rootCmd.Flags().Int("start-row", profile.DefaultStartRow, "first data row of the profile")
	rootCmd.Flags().String("catch-up", "single", "segment catch-up policy: single or catch-up")
	rootCmd.Flags().String("log-file", "", "log destination")
	rootCmd.Flags().Duration("tick-period", 0, "dispatch period")
	rootCmd.Flags().Duration("save-interval", 0, "interval between two log records")
	rootCmd.Flags().Duration("device-timeout", 0, "timeout of one register read or write")
	rootCmd.Flags().String("http-address", "", "address of the http api")
	rootCmd.Flags().String("mqtt-broker", "", "mqtt broker receiving the rig status")
	rootCmd.Flags().String("mqtt-topic", "", "mqtt topic of the rig status")
	rootCmd.Flags().String("history-db", "", "run journal database")
	rootCmd.Flags().String("autostart", "", "cron schedule starting the selected profile")
	rootCmd.Flags().String("rig-id", "", "rig id")
}

func run() error {
	if config.GetRigFile() == "" {
		return fmt.Errorf("missing rig file")
	}

	rig, err := configuration.Load(config.GetRigFile())
	if err != nil {
		return err
	}

	channels, err := rig.Build()
	if err != nil {
		return err
	}

	// no device transport is configured: the rig runs on the in-memory register bank
	bank := device.NewBank()
	rig.Simulate(bank)

	policy, err := scheduler.ParsePolicy(config.GetCatchUpPolicy())
	if err != nil {
		return err
	}

	profiles := profile.New(profile.Options{
		Sheet:    config.GetProfileSheet(),
		StartRow: config.GetProfileStartRow(),
	})
	if path := config.GetProfilePath(); path != "" {
		profiles.SetSource(path)
	}

	retry := config.GetLogRetryConfig()
	rec := recorder.New(config.GetLogFile(), recorder.RetryConfig{
		InitialInterval: retry.InitialInterval,
		Multiplier:      retry.Multiplier,
		MaxInterval:     retry.MaxInterval,
	})

	journal, err := history.Open(config.GetHistoryDB())
	if err != nil {
		return err
	}
	defer journal.Close()

	m := metrics.New()

	opts := []dispatch.Option{
		dispatch.WithJournal(journal),
		dispatch.WithMetrics(m),
	}

	var pub *publisher.Publisher
	if broker := config.GetMqttBroker(); broker != "" {
		client, err := publisher.Connect(broker, fmt.Sprintf("rigctl-%s", config.GetRigID()))
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		pub = publisher.New(client, config.GetMqttTopic(), config.GetMqttInterval())
		opts = append(opts, dispatch.WithObserver(pub))
	}

	loop := dispatch.New(channels, bank, profiles, rec, dispatch.Options{
		TickPeriod:    config.GetTickPeriod(),
		SaveInterval:  config.GetSaveInterval(),
		DeviceTimeout: config.GetDeviceTimeout(),
		Policy:        policy,
	}, opts...)

	srv := server.New(config.GetHttpAddress(), loop, journal, m.Handler())
	srv.ShutdownTimeout = config.GetGracefulShutdownDuration()

	var auto *autostart.Autostart
	if spec := config.GetAutostart(); spec != "" {
		if auto, err = autostart.New(spec, loop); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.S().Infow("rig started", "rig_id", config.GetRigID(), "rig", rig.Name, "channels", channels.Len(), "policy", policy)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(ctx)
	})
	g.Go(func() error {
		journal.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if pub != nil {
		g.Go(func() error {
			pub.Run(ctx)
			return nil
		})
	}
	if auto != nil {
		g.Go(func() error {
			auto.Run(ctx)
			return nil
		})
	}

	err = g.Wait()
	zap.S().Infow("rig stopped", "error", err)

	return err
}

func setupLogger() *zap.Logger {
	loggerCfg := &zap.Config{
		Level:    zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "severity",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	atomicLogLevel, err := zap.ParseAtomicLevel(logLevel)
	if err == nil {
		loggerCfg.Level = atomicLogLevel
	}

	plain, err := loggerCfg.Build(zap.AddStacktrace(zap.DPanicLevel))
	if err != nil {
		panic(err)
	}

	return plain
}
