package llm

import (
	"context"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const systemPrompt = "你是一个 JSON 生成器。请只输出 JSON 字符串。"

// OpenAIOptions OpenAI 兼容接口参数，ByAzure 时 Model 为部署名
type OpenAIOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	ByAzure     bool
	APIVersion  string
	Temperature float32
	Timeout     time.Duration
}

type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// OpenAICompleter 基于 eino ChatModel 的补全实现
type OpenAICompleter struct {
	chatModel generator
}

// NewOpenAICompleter 创建 OpenAI / Azure OpenAI 客户端
func NewOpenAICompleter(ctx context.Context, opts OpenAIOptions) (*OpenAICompleter, error) {
	temperature := opts.Temperature
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     opts.BaseURL,
		APIKey:      opts.APIKey,
		Model:       opts.Model,
		ByAzure:     opts.ByAzure,
		APIVersion:  opts.APIVersion,
		Temperature: &temperature,
		Timeout:     opts.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &OpenAICompleter{chatModel: chatModel}, nil
}

// Ensure OpenAICompleter implements Completer
var _ Completer = (*OpenAICompleter)(nil)

// Complete implements Completer
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: prompt},
	}

	resp, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
