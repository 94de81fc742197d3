package atri

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/chhongzh/shlex"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

func (a *Atri) handleUpdate(ctx context.Context, bt *bot.Bot, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		a.handleCallbackQuery(ctx, bt, update.CallbackQuery)
	case update.Message != nil:
		a.handleMessage(ctx, bt, update.Message)
	}
}

func (a *Atri) handleMessage(ctx context.Context, bt *bot.Bot, msg *models.Message) {
	chatID := msg.Chat.ID
	chatText := strings.TrimSpace(msg.Text)

	userID, ok := a.gate(ctx, bt, chatID, msg.From)
	if !ok {
		return
	}

	a.logger.Info("收到消息",
		zap.Int64("Chat ID", chatID),
		zap.Int64("UserID", userID),
		zap.String("Chat Text", chatText),
	)

	if strings.HasPrefix(chatText, "/") {
		handled, err := a.handleCommand(ctx, bt, chatID, chatText[1:], userID)
		if err != nil {
			a.sendError(ctx, bt, chatID, err)
			return
		}
		if handled {
			return
		}
	}

	err := a.handleAiChat(ctx, bt, userID, chatID, chatText)
	if err != nil {
		a.sendError(ctx, bt, chatID, err)
		return
	}
}

// gate 执行授权检查并在拒绝时回复, 返回false表示不应继续处理
func (a *Atri) gate(ctx context.Context, bt *bot.Bot, chatID int64, from *models.User) (int64, bool) {
	userID, err := a.authorize(ctx, from)
	if err == nil {
		return userID, true
	}

	if errors.Is(err, ErrAuthorizationDenied) {
		a.logger.Info("拒绝了非白名单用户",
			zap.Int64("Chat ID", chatID),
			zap.Int64("UserID", from.ID),
			zap.String("Username", from.Username),
		)
		if _, err := a.sendMessageTo(ctx, bt, chatID, replyRejected, false); err != nil {
			a.logger.Error("发送拒绝消息失败", zap.Error(err))
		}
		return 0, false
	}

	a.sendError(ctx, bt, chatID, err)
	return 0, false
}

// authorize 检查发送者是否在白名单内, 并确保其设置已经存在
func (a *Atri) authorize(ctx context.Context, from *models.User) (int64, error) {
	if from == nil || from.Username == "" {
		return 0, &ValidationError{Field: "sender username"}
	}
	if !a.isOwner(from) {
		return 0, ErrAuthorizationDenied
	}

	exists, err := a.hasSettings(ctx, from.ID)
	if err != nil {
		return 0, err
	}
	if !exists {
		if err := a.createDefaultSettings(ctx, from.ID); err != nil {
			return 0, err
		}
	}

	return from.ID, nil
}

func (a *Atri) isOwner(from *models.User) bool {
	if _, ok := a.allowed[allowListKey(from.Username)]; ok {
		return true
	}
	_, ok := a.allowed[strconv.FormatInt(from.ID, 10)]
	return ok
}

// handleCommand 执行已知命令, 未知命令返回false交给对话处理
func (a *Atri) handleCommand(ctx context.Context, bt *bot.Bot, chatID int64, commandLine string, userID int64) (bool, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return false, nil
	}

	name, _, _ := strings.Cut(fields[0], "@")
	handler, ok := a.commandHandlers()[name]
	if !ok {
		return false, nil
	}

	parts, err := shlex.Split(commandLine)
	if err != nil {
		parts = fields
	}

	return true, handler(ctx, bt, chatID, userID, parts[1:])
}
