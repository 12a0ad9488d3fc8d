package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"dxt/config"
)

// maxRetryDelay caps exponential backoff between attempts.
const maxRetryDelay = 10 * time.Second

// ErrEmptyResponse is returned when service answers without text.
var ErrEmptyResponse = errors.New("empty response")

// generator is the part of chat model client is using.
type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Client translates text with OpenAI compatible chat completion service.
type Client struct {
	chat   generator
	prompt string
	cfg    *config.TranslationConfig
	log    *zap.Logger
}

// NewClient creates chat model for configured service.
func NewClient(ctx context.Context, cfg *config.TranslationConfig, log *zap.Logger) (*Client, error) {
	if cfg.APIKey.Reveal() == "" {
		return nil, errors.New("translation service api key is not configured")
	}
	prompt, err := BuildPrompt(cfg)
	if err != nil {
		return nil, err
	}

	chatCfg := &openai.ChatModelConfig{
		APIKey:  cfg.APIKey.Reveal(),
		Model:   cfg.Model,
		Timeout: cfg.RequestTimeout,
	}
	if cfg.BaseURL != "" {
		chatCfg.BaseURL = cfg.BaseURL
	}
	chat, err := openai.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create chat model: %w", err)
	}
	return newClient(chat, prompt, cfg, log), nil
}

func newClient(chat generator, prompt string, cfg *config.TranslationConfig, log *zap.Logger) *Client {
	return &Client{
		chat:   chat,
		prompt: prompt,
		cfg:    cfg,
		log:    log.Named("client"),
	}
}

// Translate sends text retrying failed requests with exponential backoff.
// Canceled context stops retries immediately.
func (c *Client) Translate(ctx context.Context, text string) Result {
	start := time.Now()
	res := Result{Source: text}

	attempts, delay := max(c.cfg.MaxRetries, 1), c.cfg.RetryDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt

		translated, err := c.request(ctx, text)
		if err == nil {
			res.Text, res.Success, res.Err = translated, true, nil
			break
		}
		res.Err = err
		if ctx.Err() != nil || attempt == attempts {
			break
		}

		c.log.Debug("Translation request failed, retrying", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			res.Err = ctx.Err()
		case <-time.After(delay):
		}
		if ctx.Err() != nil {
			break
		}
		delay = min(delay*2, maxRetryDelay)
	}
	res.Duration = time.Since(start)
	return res
}

func (c *Client) request(ctx context.Context, text string) (string, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	msg, err := c.chat.Generate(ctx,
		[]*schema.Message{
			schema.SystemMessage(c.prompt),
			schema.UserMessage(text),
		},
		model.WithTemperature(float32(c.cfg.Temperature)),
		model.WithMaxTokens(MaxTokens(text, c.cfg.MaxTokens)),
	)
	if err != nil {
		return "", err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(msg.Content), nil
}
