package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnsupportedMediaType 画像でもPDFでもないファイル
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// ValidationError 解析リクエスト前に検出される入力エラー
//
// Limit は件数・サイズ上限を超えたときのみ設定される。
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Limit  int64
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidationErrors 複数の入力エラー
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d invalid inputs", len(e))
	for _, v := range e {
		msg += "; " + v.Error()
	}
	return msg
}

// ReadError アップロードファイルの読み込み・デコード失敗
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read file %q: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// TransportErrorKind モデルAPI呼び出し失敗の分類
type TransportErrorKind string

const (
	TransportNetwork           TransportErrorKind = "network"
	TransportUnauthorized      TransportErrorKind = "unauthorized"
	TransportRateLimited       TransportErrorKind = "rate_limited"
	TransportStatus            TransportErrorKind = "status"
	TransportMissingCredential TransportErrorKind = "missing_credential"
)

// TransportError モデルAPI呼び出しの失敗
type TransportError struct {
	Provider   string
	Kind       TransportErrorKind
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API returned status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewStatusError HTTPステータスからTransportErrorを作成
func NewStatusError(provider string, statusCode int, body string) *TransportError {
	kind := TransportStatus
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = TransportUnauthorized
	case http.StatusTooManyRequests:
		kind = TransportRateLimited
	}

	return &TransportError{
		Provider:   provider,
		Kind:       kind,
		StatusCode: statusCode,
		Err:        errors.New(body),
	}
}

// ParseError モデル出力がメニュー項目のJSON配列として解釈できない
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse completion: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RawPreview ログ用にモデル出力を先頭 limit 文字に切り詰める
func (e *ParseError) RawPreview(limit int) string {
	runes := []rune(e.Raw)
	if limit <= 0 || len(runes) <= limit {
		return e.Raw
	}
	return string(runes[:limit]) + "..."
}

// InputErrorMessage 入力エラーを利用者向けの表示文言に変換する
func InputErrorMessage(err error) string {
	var vs ValidationErrors
	if errors.As(err, &vs) {
		msgs := make([]string, 0, len(vs))
		for _, v := range vs {
			msgs = append(msgs, v.message())
		}
		return strings.Join(msgs, "; ")
	}

	var v *ValidationError
	if errors.As(err, &v) {
		return v.message()
	}

	var r *ReadError
	if errors.As(err, &r) {
		return fmt.Sprintf("Não foi possível ler a imagem %q.", r.Name)
	}

	if errors.Is(err, ErrUnsupportedMediaType) {
		return "Formato de arquivo não suportado. Envie uma imagem ou PDF."
	}
	return "Requisição inválida."
}

func (e *ValidationError) message() string {
	switch e.Field {
	case "api_key":
		return "Chave da API não configurada. Defina a chave antes de enviar."
	case "images":
		if e.Limit > 0 {
			return fmt.Sprintf("Envie no máximo %d imagens por vez.", e.Limit)
		}
		return "Envie pelo menos uma imagem ou URL do cardápio."
	case "url":
		if e.Value != "" {
			return fmt.Sprintf("URL inválida: %s", e.Value)
		}
		return "URL inválida."
	case "image":
		if e.Limit > 0 {
			return fmt.Sprintf("Imagem maior que o limite de %d bytes.", e.Limit)
		}
		return "Imagem inválida."
	case "form":
		return "Campo do formulário excede o tamanho permitido."
	}
	return "Requisição inválida."
}

// IsValidation 入力エラーかどうか
func IsValidation(err error) bool {
	var v *ValidationError
	var vs ValidationErrors
	var r *ReadError
	return errors.As(err, &v) || errors.As(err, &vs) || errors.As(err, &r) || errors.Is(err, ErrUnsupportedMediaType)
}
