package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/config"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/logger"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sentry",
		Short:         "Presence detection and alerting appliance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to the YAML config file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the video source and send alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSentry(configPath)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print the effective settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			printSummary(cmd, cfg)
			return nil
		},
	}

	root.AddCommand(runCmd, checkCmd)
	// bare "sentry" behaves like "sentry run"
	root.RunE = runCmd.RunE
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return config.DefaultPath
}

func runSentry(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Node.Name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wait for shutdown signal
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		sig := <-stop
		log.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("sentry stopped with error", zap.Error(err))
		return err
	}
	return nil
}

func printSummary(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "node:       %s\n", cfg.Node.Name)
	fmt.Fprintf(out, "window:     %s-%s (%s)\n", cfg.Monitoring.Start, cfg.Monitoring.End, cfg.Monitoring.Timezone)
	fmt.Fprintf(out, "cooldown:   %s\n", cfg.Cooldown())
	fmt.Fprintf(out, "thresholds: confidence >= %v, area >= %d\n", cfg.Detection.Threshold, cfg.Detection.MinArea)
	fmt.Fprintf(out, "capture:    %s\n", cfg.Capture.Source)
	fmt.Fprintf(out, "evidence:   %s/*.%s\n", cfg.Evidence.Dir, cfg.Evidence.Ext)
	fmt.Fprintf(out, "channels:   email=%t pushbullet=%t telegram=%t mqtt=%t\n",
		cfg.Email.Enabled, cfg.Pushbullet.Enabled, cfg.Telegram.Enabled, cfg.MQTT.Enabled)
}
