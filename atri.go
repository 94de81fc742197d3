// Package atri 是一个私人的Telegram AI助手, 把消息转发给补全接口并持久化每个用户的对话历史
package atri

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultUpdateTimeout      = 120 * time.Second
	defaultTokenWarnThreshold = 2000
	shutdownTimeout           = 10 * time.Second
)

// Config 是Atri的运行配置, 在启动时加载一次
type Config struct {
	BotToken string
	// AllowedUsers 中可以是用户名 (可带@) 或数字ID
	AllowedUsers       []string
	StartingPrompt     string
	WebhookSecret      string
	ListenAddr         string
	UpdateTimeout      time.Duration
	TokenWarnThreshold int
	DedupRepeats       bool
	BillingBaseURL     string
	TelegramServerURL  string
}

// Atri 是Atri的实例
type Atri struct {
	logger     *zap.Logger
	db         *gorm.DB
	completion *completionClient
	bot        *bot.Bot
	config     Config
	allowed    map[string]struct{}
}

// New 创建一个新的Atri实例
func New(logger *zap.Logger, openaiClient *openai.Client, db *gorm.DB, cfg Config) *Atri {
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = defaultUpdateTimeout
	}
	if cfg.TokenWarnThreshold <= 0 {
		cfg.TokenWarnThreshold = defaultTokenWarnThreshold
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedUsers))
	for _, u := range cfg.AllowedUsers {
		if key := allowListKey(u); key != "" {
			allowed[key] = struct{}{}
		}
	}

	logger = logger.Named("Atri")
	return &Atri{
		logger:     logger,
		db:         db,
		completion: newCompletionClient(openaiClient, cfg.BillingBaseURL, logger),
		config:     cfg,
		allowed:    allowed,
	}
}

func allowListKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

func (a *Atri) setup(ctx context.Context) error {
	if err := a.setupBot(); err != nil {
		return err
	}
	if err := a.setupDB(); err != nil {
		return err
	}
	a.setupCommands(ctx)
	return nil
}

// Start 以长轮询方式启动Bot并返回一个在停止时关闭的通道
func (a *Atri) Start(ctx context.Context) (<-chan struct{}, error) {
	if err := a.setup(ctx); err != nil {
		return nil, err
	}

	closeCh := make(chan struct{})
	go func() {
		a.bot.Start(ctx)
		close(closeCh)
	}()

	return closeCh, nil
}

// Serve 以Webhook方式启动Bot, 阻塞直到ctx结束或HTTP服务出错
func (a *Atri) Serve(ctx context.Context) error {
	if err := a.setup(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.config.ListenAddr,
		Handler:           a.webhookHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go a.bot.StartWebhook(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Webhook服务已启动", zap.String("Addr", a.config.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
