package atri

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

var botCommands = []models.BotCommand{
	{Command: "start", Description: "Start the bot"},
	{Command: "clear", Description: "Clear the dialogue history."},
	{Command: "history", Description: "Show the dialogue history."},
	{Command: "model", Description: "Outputs a GPT model you are currently using."},
	{Command: "changemodel", Description: "Change the model you are using."},
	{Command: "credits", Description: "Show the amount of credits used."},
	{Command: "ping", Description: "Check that the bot is alive."},
}

func (a *Atri) setupBot() error {
	opts := []bot.Option{
		bot.WithDefaultHandler(a.handleUpdate),
		bot.WithMiddlewares(a.updateTimeoutMiddleware),
		bot.WithErrorsHandler(func(err error) {
			a.logger.Error("Bot错误", zap.Error(err))
		}),
	}
	if a.config.TelegramServerURL != "" {
		opts = append(opts, bot.WithServerURL(a.config.TelegramServerURL))
	}

	bt, err := bot.New(a.config.BotToken, opts...)
	if err != nil {
		return err
	}

	a.bot = bt
	a.logger.Info("初始化Bot成功")

	return nil
}

func (a *Atri) setupDB() error {
	return a.db.AutoMigrate(&dialogueRecord{}, &settingsRecord{})
}

// setupCommands 注册命令列表, 失败不影响启动
func (a *Atri) setupCommands(ctx context.Context) {
	_, err := a.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: botCommands})
	if err != nil {
		a.logger.Warn("注册命令列表失败", zap.Error(err))
	}
}

// updateTimeoutMiddleware 给每个更新设置处理时限
func (a *Atri) updateTimeoutMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, bt *bot.Bot, update *models.Update) {
		ctx, cancel := context.WithTimeout(ctx, a.config.UpdateTimeout)
		defer cancel()
		next(ctx, bt, update)
	}
}
