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

const providerAnthropic = "Anthropic Claude"

// ClaudeRepository Claude Messages APIのリポジトリ実装
type ClaudeRepository struct {
	credentials domain.CredentialProvider
	model       string
	httpClient  *http.Client
	apiEndpoint string // テスト用にエンドポイントを差し替え可能に
}

// NewClaudeRepository 新しいClaudeRepositoryを作成
func NewClaudeRepository(cfg *config.ModelConfig, credentials domain.CredentialProvider) *ClaudeRepository {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.anthropic.com/v1/messages"
	}
	return &ClaudeRepository{
		credentials: credentials,
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
		apiEndpoint: endpoint,
	}
}

// SetHTTPClient テスト用にHTTPクライアントを設定（テストコードからのみ使用）
func (r *ClaudeRepository) SetHTTPClient(client *http.Client) {
	r.httpClient = client
}

// Complete システムプロンプトと画像群を1回のリクエストで送信
func (r *ClaudeRepository) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.Completion, error) {
	apiKey, ok := r.credentials.Credential()
	if !ok {
		return nil, &domain.TransportError{
			Provider: providerAnthropic,
			Kind:     domain.TransportMissingCredential,
			Err:      errors.New("api key is not configured"),
		}
	}

	content := make([]map[string]interface{}, 0, len(req.Images)+1)
	for _, img := range req.Images {
		block, err := imageBlock(img)
		if err != nil {
			return nil, err
		}
		content = append(content, block)
	}
	content = append(content, map[string]interface{}{
		"type": "text",
		"text": req.UserPrompt,
	})

	requestBody := map[string]interface{}{
		"model":       r.model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"system":      req.SystemPrompt,
		"messages": []map[string]interface{}{
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
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Provider: providerAnthropic, Kind: domain.TransportNetwork, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, domain.NewStatusError(providerAnthropic, resp.StatusCode, errorMessage(body))
	}

	var response struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &domain.TransportError{
			Provider: providerAnthropic,
			Kind:     domain.TransportNetwork,
			Err:      fmt.Errorf("failed to decode response: %w", err),
		}
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "" || block.Type == "text" {
			text += block.Text
		}
	}

	model := response.Model
	if model == "" {
		model = r.model
	}

	return &domain.Completion{
		Text:         text,
		InputTokens:  response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
		Model:        model,
	}, nil
}

// imageBlock 画像入力をMessages APIのコンテンツブロックに変換
func imageBlock(img domain.ImageInput) (map[string]interface{}, error) {
	switch v := img.(type) {
	case *domain.URLImage:
		return map[string]interface{}{
			"type": "image",
			"source": map[string]string{
				"type": "url",
				"url":  v.Value(),
			},
		}, nil
	case *domain.InlineImage:
		blockType := "image"
		if v.MediaType() == "application/pdf" {
			blockType = "document"
		}
		return map[string]interface{}{
			"type": blockType,
			"source": map[string]string{
				"type":       "base64",
				"media_type": v.MediaType(),
				"data":       v.Base64(),
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported image input: %T", img)
	}
}

// ProviderName プロバイダー名を返す
func (r *ClaudeRepository) ProviderName() string {
	return providerAnthropic
}
