package atri

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const (
	replyApology  = "Sorry an error has occured, please try again later."
	replyRejected = "Sorry, you are not allowed. This is personal AI Bot"
)

func (a *Atri) sendMessageTo(ctx context.Context, bt *bot.Bot, chatID int64, msg string, isMarkdown bool) (*models.Message, error) {
	param := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   msg,
	}
	if isMarkdown {
		param.ParseMode = models.ParseModeMarkdownV1
	}
	return bt.SendMessage(ctx, param)
}

func (a *Atri) sendKeyboardTo(ctx context.Context, bt *bot.Bot, chatID int64, msg string, keyboard *models.InlineKeyboardMarkup) error {
	_, err := bt.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        msg,
		ReplyMarkup: keyboard,
	})
	return err
}

func (a *Atri) sendChatAction(ctx context.Context, bt *bot.Bot, chatID int64, newAction models.ChatAction) error {
	_, err := bt.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: chatID,
		Action: newAction,
	})

	return err
}

func (a *Atri) answerCallback(ctx context.Context, bt *bot.Bot, callbackID string) {
	_, err := bt.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: callbackID})
	if err != nil {
		a.logger.Warn("应答回调失败", zap.Error(err))
	}
}

// sendError 记录错误并向用户发送统一的道歉消息, 不会透露错误内容
func (a *Atri) sendError(ctx context.Context, bt *bot.Bot, chatID int64, err error) {
	var (
		upstreamErr    *UpstreamError
		networkErr     *NetworkError
		persistenceErr *PersistenceError
		validationErr  *ValidationError
	)
	switch {
	case errors.As(err, &upstreamErr):
		a.logger.Error("补全接口返回错误", zap.Int64("Chat ID", chatID), zap.Error(err))
	case errors.As(err, &networkErr):
		a.logger.Error("无法连接外部接口", zap.Int64("Chat ID", chatID), zap.Error(err))
	case errors.As(err, &persistenceErr):
		a.logger.Error("数据库读写失败", zap.Int64("Chat ID", chatID), zap.Error(err))
	case errors.As(err, &validationErr):
		a.logger.Warn("更新缺少字段", zap.Int64("Chat ID", chatID), zap.Error(err))
	default:
		a.logger.Error("处理更新失败", zap.Int64("Chat ID", chatID), zap.Error(err))
	}

	_, err = a.sendMessageTo(ctx, bt, chatID, replyApology, false)
	if err != nil {
		a.logger.Error("在发送错误时遇到错误! >_<", zap.Error(err))
	}
}
