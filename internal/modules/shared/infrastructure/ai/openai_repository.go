package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"menu-analyzer-app/internal/config"
	"menu-analyzer-app/internal/modules/menu/domain"
)

const providerOpenAI = "OpenAI"

// OpenAIRepository OpenAI Chat Completions APIのリポジトリ実装
type OpenAIRepository struct {
	credentials domain.CredentialProvider
	model       string
	httpClient  *http.Client
	apiEndpoint string // テスト用にエンドポイントを差し替え可能に
}

// NewOpenAIRepository 新しいOpenAIRepositoryを作成
func NewOpenAIRepository(cfg *config.ModelConfig, credentials domain.CredentialProvider) *OpenAIRepository {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	}
	return &OpenAIRepository{
		credentials: credentials,
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
		apiEndpoint: endpoint,
	}
}

// SetHTTPClient テスト用にHTTPクライアントを設定（テストコードからのみ使用）
func (r *OpenAIRepository) SetHTTPClient(client *http.Client) {
	r.httpClient = client
}

// Complete システムプロンプトと画像群を1回のリクエストで送信
func (r *OpenAIRepository) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.Completion, error) {
	apiKey, ok := r.credentials.Credential()
	if !ok {
		return nil, &domain.TransportError{
			Provider: providerOpenAI,
			Kind:     domain.TransportMissingCredential,
			Err:      errors.New("api key is not configured"),
		}
	}

	// ユーザーメッセージは指示文のあとに画像を入力順で並べる
	content := make([]map[string]interface{}, 0, len(req.Images)+1)
	content = append(content, map[string]interface{}{
		"type": "text",
		"text": req.UserPrompt,
	})
	for _, img := range req.Images {
		content = append(content, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]string{
				"url": img.Value(),
			},
		})
	}

	requestBody := map[string]interface{}{
		"model":       r.model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"messages": []map[string]interface{}{
			{
				"role":    "system",
				"content": req.SystemPrompt,
			},
			{
				"role":    "user",
				"content": content,
			},
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Provider: providerOpenAI, Kind: domain.TransportNetwork, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, domain.NewStatusError(providerOpenAI, resp.StatusCode, errorMessage(body))
	}

	var response struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &domain.TransportError{
			Provider: providerOpenAI,
			Kind:     domain.TransportNetwork,
			Err:      fmt.Errorf("failed to decode response: %w", err),
		}
	}

	text := ""
	if len(response.Choices) > 0 {
		text = response.Choices[0].Message.Content
	}

	model := response.Model
	if model == "" {
		model = r.model
	}

	return &domain.Completion{
		Text:         text,
		InputTokens:  response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
		Model:        model,
	}, nil
}

// ProviderName プロバイダー名を返す
func (r *OpenAIRepository) ProviderName() string {
	return providerOpenAI
}

// errorMessage エラーレスポンスからメッセージを取り出す（取れなければ本文そのまま）
func errorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return string(bytes.TrimSpace(body))
}
