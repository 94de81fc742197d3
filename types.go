package atri

import (
	"context"

	"github.com/go-telegram/bot"
)

type commandHandlerFunc = func(context.Context, *bot.Bot, int64, int64, []string) error
