// Package gemini はGoogle Gen AI SDKを使ったGemini APIクライアントを提供する。
// 構造化出力（responseSchema）によるJSON生成のみをサポートする。
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// ErrEmptyResponse は候補が返らなかった場合のエラー。
var ErrEmptyResponse = errors.New("gemini: empty response")

// Config はClientの設定。
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout はリクエスト全体のタイムアウト。0の場合は無制限。
	Timeout time.Duration
}

// Client はGemini APIと通信する。リトライは行わない。
type Client struct {
	models *genai.Models
	model  string
}

// New はClientを生成する。BaseURLが空の場合はSDKの既定エンドポイントを使う。
func New(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		cc.HTTPOptions.Timeout = &timeout
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{models: client.Models, model: cfg.Model}, nil
}

// Model は使用するモデル名を返す。
func (c *Client) Model() string {
	return c.model
}

// GenerateJSON はsystem指示とpromptを送信し、schemaに従うJSON応答をoutにデコードする。
// API側のエラーはgenai.APIErrorとしてラップされる。
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema, out any) error {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return fmt.Errorf("gemini: generate content: %w", err)
	}

	text, err := firstText(resp)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decoding generated JSON: %w", err)
	}
	return nil
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: finish reason %s", ErrEmptyResponse, resp.Candidates[0].FinishReason)
	}
	return text, nil
}
