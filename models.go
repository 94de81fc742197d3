package atri

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role 是消息的角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 是一条带角色的对话消息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatModel 是可选的对话模型
type ChatModel string

const (
	ModelGPT35Turbo ChatModel = "gpt-3.5-turbo"
	ModelGPT4       ChatModel = "gpt-4"
	ModelGPT4Turbo  ChatModel = "gpt-4-1106-preview"

	DefaultChatModel = ModelGPT35Turbo
)

// chatModelChoices 是模型菜单中的选项, 顺序即按钮顺序
var chatModelChoices = []struct {
	Label string
	Model ChatModel
}{
	{"GPT-3.5 turbo", ModelGPT35Turbo},
	{"GPT-4", ModelGPT4},
	{"GPT-4-Turbo", ModelGPT4Turbo},
}

// ParseChatModel 解析模型标识, 未知的标识返回false
func ParseChatModel(s string) (ChatModel, bool) {
	switch ChatModel(s) {
	case ModelGPT35Turbo, ModelGPT4, ModelGPT4Turbo:
		return ChatModel(s), true
	default:
		return "", false
	}
}

// OrDefault 在模型未知时返回默认模型
func (m ChatModel) OrDefault() ChatModel {
	if parsed, ok := ParseChatModel(string(m)); ok {
		return parsed
	}
	return DefaultChatModel
}

// Settings 是用户的设置
type Settings struct {
	Model ChatModel `json:"model"`
}

type dialogueRecord struct {
	gorm.Model

	UserID  int64 `gorm:"uniqueIndex"`
	Message datatypes.JSONSlice[Message]
}

func (dialogueRecord) TableName() string { return "dialogues" }

type settingsRecord struct {
	gorm.Model

	UserID   int64 `gorm:"uniqueIndex"`
	Settings datatypes.JSONType[Settings]
}

func (settingsRecord) TableName() string { return "settings" }
