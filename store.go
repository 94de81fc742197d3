package atri

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// seedHistory 返回初始的历史, 配置了起始提示词时包含一条system消息
func (a *Atri) seedHistory() []Message {
	if a.config.StartingPrompt == "" {
		return []Message{}
	}
	return []Message{{Role: RoleSystem, Content: a.config.StartingPrompt}}
}

// getHistory 读取用户的对话历史, 不存在时写入初始历史并返回
func (a *Atri) getHistory(ctx context.Context, userID int64) ([]Message, error) {
	record, err := gorm.G[dialogueRecord](a.db).Where("user_id = ?", userID).First(ctx)
	if err == nil {
		return append([]Message{}, record.Message...), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &PersistenceError{Op: "get history", Err: err}
	}

	seed := a.seedHistory()
	err = gorm.G[dialogueRecord](a.db).Create(ctx, &dialogueRecord{UserID: userID, Message: seed})
	if err != nil {
		return nil, &PersistenceError{Op: "seed history", Err: err}
	}
	a.logger.Info("初始化对话历史", zap.Int64("UserID", userID), zap.Int("Messages", len(seed)))

	return seed, nil
}

// updateHistory 用messages整体覆盖用户的对话历史 (后写者胜)
func (a *Atri) updateHistory(ctx context.Context, userID int64, messages []Message) error {
	if messages == nil {
		messages = []Message{}
	}

	rows, err := gorm.G[dialogueRecord](a.db).
		Where("user_id = ?", userID).
		Update(ctx, "message", datatypes.JSONSlice[Message](messages))
	if err != nil {
		return &PersistenceError{Op: "update history", Err: err}
	}
	if rows > 0 {
		return nil
	}

	err = gorm.G[dialogueRecord](a.db).Create(ctx, &dialogueRecord{UserID: userID, Message: messages})
	if err != nil {
		return &PersistenceError{Op: "create history", Err: err}
	}
	return nil
}

// clearHistory 把用户的对话历史重置为初始历史
func (a *Atri) clearHistory(ctx context.Context, userID int64) error {
	if err := a.updateHistory(ctx, userID, a.seedHistory()); err != nil {
		return err
	}
	a.logger.Info("清空对话历史", zap.Int64("UserID", userID))
	return nil
}

func (a *Atri) hasSettings(ctx context.Context, userID int64) (bool, error) {
	records, err := gorm.G[settingsRecord](a.db).Where("user_id = ?", userID).Limit(1).Find(ctx)
	if err != nil {
		return false, &PersistenceError{Op: "check settings", Err: err}
	}
	return len(records) > 0, nil
}

func (a *Atri) createDefaultSettings(ctx context.Context, userID int64) error {
	err := gorm.G[settingsRecord](a.db).Create(ctx, &settingsRecord{
		UserID:   userID,
		Settings: datatypes.NewJSONType(Settings{Model: DefaultChatModel}),
	})
	if err != nil {
		return &PersistenceError{Op: "create settings", Err: err}
	}
	a.logger.Info("创建默认设置", zap.Int64("UserID", userID), zap.String("Model", string(DefaultChatModel)))
	return nil
}

// changeModel 修改用户的模型, 失败时只记录日志并返回false
func (a *Atri) changeModel(ctx context.Context, userID int64, model ChatModel) bool {
	rows, err := gorm.G[settingsRecord](a.db).
		Where("user_id = ?", userID).
		Update(ctx, "settings", datatypes.NewJSONType(Settings{Model: model}))
	if err != nil {
		a.logger.Error("修改模型失败", zap.Int64("UserID", userID), zap.Error(err))
		return false
	}
	if rows == 0 {
		a.logger.Warn("修改模型时未找到设置", zap.Int64("UserID", userID))
		return false
	}
	return true
}

// getModel 读取用户的模型, 没有设置时返回默认模型 (不会写入)
func (a *Atri) getModel(ctx context.Context, userID int64) (ChatModel, error) {
	records, err := gorm.G[settingsRecord](a.db).Where("user_id = ?", userID).Limit(1).Find(ctx)
	if err != nil {
		return "", &PersistenceError{Op: "get model", Err: err}
	}
	if len(records) == 0 {
		return DefaultChatModel, nil
	}
	return records[0].Settings.Data().Model.OrDefault(), nil
}
