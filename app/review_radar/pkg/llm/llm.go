// Package llm 语言模型调用封装：文本进，文本出
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/config"
)

// ErrNotConfigured 缺少调用模型所需的配置
var ErrNotConfigured = errors.New("llm: not configured")

// Completer 定义通用的补全接口
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc 函数适配器
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Completer
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Limited 每次调用前先等待限流器
type Limited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewLimited 包装一个带限流的 Completer
func NewLimited(next Completer, limiter *rate.Limiter) *Limited {
	return &Limited{next: next, limiter: limiter}
}

// Ensure Limited implements Completer
var _ Completer = (*Limited)(nil)

// Complete implements Completer
func (l *Limited) Complete(ctx context.Context, prompt string) (string, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return l.next.Complete(ctx, prompt)
}

// NewLimiter 根据配置创建限流器，RPM 为平均速率，QPS 为突发上限
func NewLimiter(cfg config.ConcurrencyConfig) *rate.Limiter {
	rpm, burst := cfg.RPM, cfg.QPS
	if rpm <= 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

// NewCompleter 根据配置创建模型客户端，并包上限流
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	lc := cfg.LLM
	timeout := time.Duration(lc.Timeout) * time.Second

	var (
		c   Completer
		err error
	)
	switch lc.Provider {
	case "azure":
		if lc.APIKey == "" || lc.BaseURL == "" || lc.Model == "" {
			return nil, fmt.Errorf("%w: azure provider needs AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_DEPLOYMENT_NAME", ErrNotConfigured)
		}
		c, err = NewOpenAICompleter(ctx, OpenAIOptions{
			BaseURL:     lc.BaseURL,
			APIKey:      lc.APIKey,
			Model:       lc.Model,
			ByAzure:     true,
			APIVersion:  lc.APIVersion,
			Temperature: lc.Temperature,
			Timeout:     timeout,
		})

	case "openai", "":
		if lc.APIKey == "" || lc.Model == "" {
			return nil, fmt.Errorf("%w: openai provider needs api_key and model", ErrNotConfigured)
		}
		c, err = NewOpenAICompleter(ctx, OpenAIOptions{
			BaseURL:     lc.BaseURL,
			APIKey:      lc.APIKey,
			Model:       lc.Model,
			Temperature: lc.Temperature,
			Timeout:     timeout,
		})

	case "gemini":
		if lc.APIKey == "" || lc.Model == "" {
			return nil, fmt.Errorf("%w: gemini provider needs GEMINI_API_KEY and model", ErrNotConfigured)
		}
		c, err = NewGeminiCompleter(ctx, lc.APIKey, lc.Model, lc.Temperature)

	default:
		return nil, fmt.Errorf("unknown llm provider: %s", lc.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	return NewLimited(c, NewLimiter(cfg.Concurrency)), nil
}
