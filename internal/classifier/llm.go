package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hitoshi/ouioui/internal/cefr"
)

const llmSystemPrompt = `You grade the reading difficulty of French news text for language learners.
Answer with a JSON object {"level": "<CEFR>"} where <CEFR> is exactly one of A1, A2, B1, B2, C1, C2.`

// LLMConfig はLLM分類器の設定。
type LLMConfig struct {
	APIKey  string
	BaseURL string // OpenAI互換APIを使う場合に指定
	Model   string
}

// LLMClassifier はOpenAI互換のチャットモデルにCEFRレベルを判定させる分類器。
// 推論サイドカーを用意できない環境での代替バックエンド。
type LLMClassifier struct {
	client *openai.Client
	model  string
}

// NewLLMClassifier はLLMClassifierを生成する。
func NewLLMClassifier(cfg LLMConfig) (*LLMClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &LLMClassifier{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Classify はClassifierインターフェースを実装する。
// テキストはmaxTokens語で切り詰めてから送信する。
func (c *LLMClassifier) Classify(ctx context.Context, text string, maxTokens int) (int, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: truncateWords(text, maxTokens)},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("no choices in completion response")
	}

	return parseLevelVerdict(resp.Choices[0].Message.Content)
}

// parseLevelVerdict は {"level":"B1"} 形式の応答をクラスインデックスに変換する。
func parseLevelVerdict(content string) (int, error) {
	var verdict struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return 0, fmt.Errorf("decode verdict: %w", err)
	}

	level, err := cefr.ParseLevel(verdict.Level)
	if err != nil {
		return 0, fmt.Errorf("decode verdict: %w", err)
	}
	return level.Index(), nil
}

// truncateWords は空白区切りでmax語までに切り詰める。
func truncateWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:max], " ")
}

// compile-time interface check
var _ Classifier = (*LLMClassifier)(nil)
