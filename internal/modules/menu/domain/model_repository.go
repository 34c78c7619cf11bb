package domain

import "context"

// CompletionRequest マルチモーダルモデルへのリクエスト
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Images       []ImageInput
	Temperature  float64
	MaxTokens    int
}

// Completion モデルの応答
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
}

// TotalTokens 合計トークン数を返す
func (c *Completion) TotalTokens() int {
	return c.InputTokens + c.OutputTokens
}

// ModelRepository マルチモーダルモデルAPIのリポジトリインターフェース
type ModelRepository interface {
	// Complete リクエストを1回送信して応答を返す（失敗時は *TransportError）
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)

	// ProviderName プロバイダー名を返す
	ProviderName() string
}

// CredentialProvider APIキーの供給元
type CredentialProvider interface {
	Credential() (string, bool)
}

// CredentialStore 実行中に変更できるAPIキーの保管先
type CredentialStore interface {
	CredentialProvider
	SetCredential(key string) error
	ClearCredential()
}
