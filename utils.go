package atri

import (
	"fmt"
	"strings"
)

var roleLabels = map[Role]string{
	RoleSystem:    "System",
	RoleUser:      "You",
	RoleAssistant: "AI",
}

// formatHistory 把历史格式化为每行一条的文本
func formatHistory(messages []Message) string {
	var sb strings.Builder
	for _, m := range messages {
		label, ok := roleLabels[m.Role]
		if !ok {
			label = string(m.Role)
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, strings.TrimLeft(m.Content, "\n"))
	}
	return sb.String()
}

func withoutSystem(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

// lastUserMessage 返回最后一条user消息的内容
func lastUserMessage(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content, true
		}
	}
	return "", false
}

func formatUSD(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
