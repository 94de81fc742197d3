package main

import (
	"errors"
	"fmt"
	"strings"

	atri "github.com/chhongzh/atri-gpt"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

type appConfig struct {
	Atri atri.Config

	OpenAIKey      string
	OpenAIBaseURL  string
	DatabaseDriver string
	DatabaseDSN    string
	LogLevel       string
	LogFormat      string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("update_timeout", "120s")
	v.SetDefault("token_warn_threshold", 2000)
	v.SetDefault("dedup_repeats", true)
	v.SetDefault("database_driver", "postgres")
	v.SetDefault("billing_base_url", "https://api.openai.com/")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// loadConfig 读取并校验配置, 缺少必填项时返回错误
func loadConfig(v *viper.Viper) (appConfig, error) {
	botToken := strings.TrimSpace(v.GetString("bot_token"))
	if botToken == "" {
		return appConfig{}, errors.New("please specify the Telegram bot token (BOT_TOKEN)")
	}

	users, err := parseUsers(v.GetString("users"))
	if err != nil {
		return appConfig{}, err
	}

	openAIKey := strings.TrimSpace(v.GetString("openai_key"))
	if openAIKey == "" {
		return appConfig{}, errors.New("please specify the OpenAI API key (OPENAI_KEY)")
	}

	secret := strings.TrimSpace(v.GetString("function_secret"))
	if secret == "" {
		return appConfig{}, errors.New("please specify the webhook secret (FUNCTION_SECRET)")
	}

	dsn := strings.TrimSpace(v.GetString("database_dsn"))
	if dsn == "" {
		return appConfig{}, errors.New("please specify the database DSN (DATABASE_DSN)")
	}

	return appConfig{
		Atri: atri.Config{
			BotToken:           botToken,
			AllowedUsers:       users,
			StartingPrompt:     v.GetString("starting_prompt"),
			WebhookSecret:      secret,
			ListenAddr:         v.GetString("listen_addr"),
			UpdateTimeout:      v.GetDuration("update_timeout"),
			TokenWarnThreshold: v.GetInt("token_warn_threshold"),
			DedupRepeats:       v.GetBool("dedup_repeats"),
			BillingBaseURL:     v.GetString("billing_base_url"),
			TelegramServerURL:  v.GetString("telegram_server_url"),
		},
		OpenAIKey:      openAIKey,
		OpenAIBaseURL:  strings.TrimSpace(v.GetString("openai_base_url")),
		DatabaseDriver: v.GetString("database_driver"),
		DatabaseDSN:    dsn,
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
	}, nil
}

// parseUsers 解析JSON数组形式的白名单
func parseUsers(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("please specify the users that have access to the bot (USERS)")
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("USERS must be a JSON array, got %q", raw)
	}

	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("USERS must be a JSON array, got %q", raw)
	}

	var users []string
	parsed.ForEach(func(_, value gjson.Result) bool {
		if s := strings.TrimSpace(value.String()); s != "" {
			users = append(users, s)
		}
		return true
	})
	if len(users) == 0 {
		return nil, errors.New("please specify the users that have access to the bot (USERS)")
	}

	return users, nil
}
