package atri

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const modelCallbackPrefix = "model:"

func (a *Atri) commandHandlers() map[string]commandHandlerFunc {
	return map[string]commandHandlerFunc{
		"start":       a.handleStart,
		"model":       a.handleModel,
		"changemodel": a.handleChangeModel,
		"history":     a.handleHistory,
		"clear":       a.handleClear,
		"credits":     a.handleCredits,
		"ping":        a.handlePing,
	}
}

func (a *Atri) handleStart(ctx context.Context, bt *bot.Bot, chatID int64, _ int64, _ []string) error {
	_, err := a.sendMessageTo(ctx, bt, chatID, "Welcome! I will be your personal AI Assistant.", false)
	return err
}

func (a *Atri) handlePing(ctx context.Context, bt *bot.Bot, chatID int64, _ int64, _ []string) error {
	_, err := a.sendMessageTo(ctx, bt, chatID, "pong", false)
	return err
}

func (a *Atri) handleModel(ctx context.Context, bt *bot.Bot, chatID int64, userID int64, _ []string) error {
	model, err := a.getModel(ctx, userID)
	if err != nil {
		return err
	}

	_, err = a.sendMessageTo(ctx, bt, chatID, fmt.Sprintf("You are currently using %s model", model), false)
	return err
}

func (a *Atri) handleChangeModel(ctx context.Context, bt *bot.Bot, chatID int64, _ int64, _ []string) error {
	return a.sendKeyboardTo(ctx, bt, chatID, "Please select the model you want to use", modelKeyboard())
}

func modelKeyboard() *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(chatModelChoices))
	for _, choice := range chatModelChoices {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         choice.Label,
			CallbackData: modelCallbackPrefix + string(choice.Model),
		}})
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// handleCallbackQuery 处理模型菜单的按钮
func (a *Atri) handleCallbackQuery(ctx context.Context, bt *bot.Bot, query *models.CallbackQuery) {
	chatID := query.From.ID
	a.answerCallback(ctx, bt, query.ID)

	userID, ok := a.gate(ctx, bt, chatID, &query.From)
	if !ok {
		return
	}

	data, ok := strings.CutPrefix(query.Data, modelCallbackPrefix)
	if !ok {
		a.logger.Warn("未知的回调数据", zap.String("Data", query.Data))
		return
	}

	model, ok := ParseChatModel(data)
	if !ok {
		a.sendError(ctx, bt, chatID, &ValidationError{Field: "known model"})
		return
	}

	if !a.changeModel(ctx, userID, model) {
		a.sendError(ctx, bt, chatID, errors.New("change model failed"))
		return
	}
	a.logger.Info("模型已修改", zap.Int64("UserID", userID), zap.String("Model", string(model)))

	_, err := a.sendMessageTo(ctx, bt, chatID, fmt.Sprintf("The model has been changed to %s", model), false)
	if err != nil {
		a.logger.Error("发送消息失败", zap.Error(err))
	}
}

func (a *Atri) handleHistory(ctx context.Context, bt *bot.Bot, chatID int64, userID int64, _ []string) error {
	history, err := a.getHistory(ctx, userID)
	if err != nil {
		return err
	}

	visible := formatHistory(withoutSystem(history))
	if visible == "" {
		_, err = a.sendMessageTo(ctx, bt, chatID, "History is empty", false)
		return err
	}

	tokens := EstimateTokens(strings.ReplaceAll(formatHistory(history), "\n", ""), EstimateMax)
	reply := visible + fmt.Sprintf("Approximate token usage for your query: %d", tokens)

	_, err = a.sendMessageTo(ctx, bt, chatID, reply, false)
	return err
}

func (a *Atri) handleClear(ctx context.Context, bt *bot.Bot, chatID int64, userID int64, _ []string) error {
	if err := a.clearHistory(ctx, userID); err != nil {
		return err
	}

	_, err := a.sendMessageTo(ctx, bt, chatID, "Your dialogue has been cleared", false)
	return err
}

func (a *Atri) handleCredits(ctx context.Context, bt *bot.Bot, chatID int64, _ int64, _ []string) error {
	usage, err := a.completion.usage(ctx)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Credits available: %s\nCredits used: %s", formatUSD(usage.Available), formatUSD(usage.Used))
	_, err = a.sendMessageTo(ctx, bt, chatID, msg, false)
	return err
}
