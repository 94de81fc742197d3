package atri

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	completionTemperature = 0.6
	completionMaxTokens   = 400

	billingPath           = "dashboard/billing/credit_grants"
	defaultBillingBaseURL = "https://api.openai.com/"
)

// CompletionResult 是一次补全的结果
type CompletionResult struct {
	Answer     string
	TokensUsed int64
}

// Usage 是账户的额度信息 (美元)
type Usage struct {
	Available float64
	Used      float64
}

type completionClient struct {
	client         *openai.Client
	billingBaseURL string
	logger         *zap.Logger
}

func newCompletionClient(client *openai.Client, billingBaseURL string, logger *zap.Logger) *completionClient {
	if billingBaseURL == "" {
		billingBaseURL = defaultBillingBaseURL
	}
	if !strings.HasSuffix(billingBaseURL, "/") {
		billingBaseURL += "/"
	}
	return &completionClient{
		client:         client,
		billingBaseURL: billingBaseURL,
		logger:         logger.Named("Completion"),
	}
}

// complete 发送一次补全请求, 返回第一个choice的内容
func (c *completionClient) complete(ctx context.Context, messages []Message, model ChatModel) (CompletionResult, error) {
	const op = "chat completion"

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       string(model.OrDefault()),
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(completionTemperature),
		MaxTokens:   openai.Int(completionMaxTokens),
	})
	if err != nil {
		return CompletionResult{}, classifyAPIError(ctx, op, err)
	}

	if msg := gjson.Get(resp.RawJSON(), "error.message"); msg.Exists() {
		return CompletionResult{}, &UpstreamError{Op: op, Message: msg.String()}
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, &UpstreamError{Op: op, Message: "no choices in response"}
	}

	c.logger.Info("补全完成",
		zap.String("Model", string(model.OrDefault())),
		zap.Int64("TokensUsed", resp.Usage.TotalTokens),
	)

	return CompletionResult{
		Answer:     resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// usage 查询计费接口
func (c *completionClient) usage(ctx context.Context) (Usage, error) {
	const op = "billing usage"

	var raw []byte
	err := c.client.Get(ctx, billingPath, nil, &raw, option.WithBaseURL(c.billingBaseURL))
	if err != nil {
		return Usage{}, classifyAPIError(ctx, op, err)
	}

	body := string(raw)
	if !gjson.Valid(body) {
		return Usage{}, &UpstreamError{Op: op, Message: "invalid JSON in response"}
	}
	if msg := gjson.Get(body, "error.message"); msg.Exists() {
		return Usage{}, &UpstreamError{Op: op, Message: msg.String()}
	}

	return Usage{
		Available: gjson.Get(body, "total_available").Float(),
		Used:      gjson.Get(body, "total_used").Float(),
	}, nil
}

// classifyAPIError 区分接口返回的错误和传输层错误
func classifyAPIError(ctx context.Context, op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return &UpstreamError{Op: op, StatusCode: apiErr.StatusCode, Message: msg}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &NetworkError{Op: op, Err: ctxErr}
	}
	return &NetworkError{Op: op, Err: err}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
