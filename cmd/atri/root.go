package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	atri "github.com/chhongzh/atri-gpt"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "atri",
		Short:        "Personal Telegram AI assistant",
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)

	cmd.PersistentFlags().String("config", "", "Config file path (optional).")
	cmd.PersistentFlags().String("log-level", "", "Logging level: debug|info|warn|error.")
	cmd.PersistentFlags().String("log-format", "", "Logging format: console|json.")
	_ = viper.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", cmd.PersistentFlags().Lookup("log-format"))

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newPollCmd())

	return cmd
}

func initConfig() {
	setDefaults(viper.GetViper())

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	cfgFile := strings.TrimSpace(viper.GetString("config"))
	if cfgFile == "" {
		return
	}

	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive updates through the webhook endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), func(ctx context.Context, a *atri.Atri) error {
				return a.Serve(ctx)
			})
		},
	}

	cmd.Flags().String("listen", "", "Webhook listen address.")
	_ = viper.BindPFlag("listen_addr", cmd.Flags().Lookup("listen"))

	return cmd
}

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Receive updates through long polling (for local use)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), func(ctx context.Context, a *atri.Atri) error {
				done, err := a.Start(ctx)
				if err != nil {
					return err
				}
				<-done
				return nil
			})
		},
	}
}

func runBot(parent context.Context, run func(context.Context, *atri.Atri) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := openDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Error("连接数据库失败", zap.String("Driver", cfg.DatabaseDriver), zap.Error(err))
		return err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIKey),
		option.WithMaxRetries(0),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	client := openai.NewClient(opts...)

	a := atri.New(logger, &client, db, cfg.Atri)
	if err := run(ctx, a); err != nil {
		logger.Error("Bot异常退出", zap.Error(err))
		return err
	}

	logger.Info("Bot已停止")
	return nil
}
