package atri

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// handleAiChat 处理 AI 聊天逻辑
func (a *Atri) handleAiChat(ctx context.Context, bt *bot.Bot, userID int64, chatID int64, chatText string) error {
	if chatText == "" {
		a.logger.Warn("消息没有文本", zap.Int64("UserID", userID), zap.Error(&ValidationError{Field: "message text"}))
		_, err := a.sendMessageTo(ctx, bt, chatID, "No message", false)
		return err
	}

	history, err := a.getHistory(ctx, userID)
	if err != nil {
		return err
	}

	if a.config.DedupRepeats {
		if last, ok := lastUserMessage(history); ok && last == chatText {
			a.logger.Info("重复的请求", zap.Int64("UserID", userID))
			_, err := a.sendMessageTo(ctx, bt, chatID, "Repeated requested!", false)
			return err
		}
	}

	tokens := EstimateTokens(formatHistory(history), EstimateMax)
	if tokens > a.config.TokenWarnThreshold {
		warning := fmt.Sprintf("Just a heads up, you've used around *%d* tokens for this query. "+
			"To help you manage your token usage, we recommend running the */clear* command every so often.", tokens)
		if _, err := a.sendMessageTo(ctx, bt, chatID, warning, true); err != nil {
			a.logger.Warn("发送token提醒失败", zap.Error(err))
		}
	}

	model, err := a.getModel(ctx, userID)
	if err != nil {
		return err
	}

	userMessage := Message{Role: RoleUser, Content: chatText}
	request := append(append([]Message{}, history...), userMessage)

	stopTyping := a.startTypingLoop(ctx, bt, chatID)
	result, err := a.completion.complete(ctx, request, model)
	stopTyping()
	if err != nil {
		return err
	}

	updated := append(request, Message{Role: RoleAssistant, Content: result.Answer + "\n"})
	if err := a.updateHistory(ctx, userID, updated); err != nil {
		return err
	}

	a.logger.Info(
		"会话完成",
		zap.Int64("UserID", userID),
		zap.String("Model", string(model)),
		zap.Int64("TokensUsed", result.TokensUsed),
		zap.Int("TotalMessages", len(updated)),
	)

	_, err = a.sendMessageTo(ctx, bt, chatID, result.Answer, false)
	return err
}

// startTypingLoop 开启一个 goroutine 持续发送 Typing 状态，返回一个停止函数 (会等待 goroutine 退出)
func (a *Atri) startTypingLoop(ctx context.Context, bt *bot.Bot, chatID int64) func() {
	done := make(chan struct{})
	ticker := time.NewTicker(time.Second * 6)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()

		fn := func() {
			err := a.sendChatAction(ctx, bt, chatID, models.ChatActionTyping)
			if err != nil {
				a.logger.Error("Action Routine Error", zap.Error(err))
			}
		}
		fn()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
