package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantKind   TransportErrorKind
	}{
		{name: "401は認証エラー", statusCode: http.StatusUnauthorized, wantKind: TransportUnauthorized},
		{name: "403は認証エラー", statusCode: http.StatusForbidden, wantKind: TransportUnauthorized},
		{name: "429はレート制限", statusCode: http.StatusTooManyRequests, wantKind: TransportRateLimited},
		{name: "500はステータスエラー", statusCode: http.StatusInternalServerError, wantKind: TransportStatus},
		{name: "400はステータスエラー", statusCode: http.StatusBadRequest, wantKind: TransportStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStatusError("OpenAI", tt.statusCode, "body")
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", err.Kind, tt.wantKind)
			}
			if !strings.Contains(err.Error(), fmt.Sprintf("%d", tt.statusCode)) {
				t.Errorf("Error() = %s, want to contain status code", err.Error())
			}
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("wrapped: %w", &TransportError{Provider: "OpenAI", Kind: TransportNetwork, Err: cause})

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatal("Expected errors.As to find *TransportError")
	}
	if !strings.Contains(te.Error(), "connection refused") {
		t.Errorf("Error() = %s, want to contain cause", te.Error())
	}
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "ValidationError", err: &ValidationError{Field: "url", Reason: "bad"}, want: true},
		{name: "ValidationErrors", err: ValidationErrors{{Field: "url", Reason: "bad"}}, want: true},
		{name: "ReadError", err: &ReadError{Name: "a.png", Err: errors.New("eof")}, want: true},
		{name: "未対応のメディアタイプ", err: fmt.Errorf("x: %w", ErrUnsupportedMediaType), want: true},
		{name: "TransportError", err: &TransportError{Provider: "OpenAI", Err: errors.New("x")}, want: false},
		{name: "ParseError", err: &ParseError{Err: errors.New("x")}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.want {
				t.Errorf("IsValidation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseError_RawPreview(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		limit int
		want  string
	}{
		{name: "正常系: 上限以内はそのまま", raw: "Sorry", limit: 10, want: "Sorry"},
		{name: "正常系: 上限を超えると切り詰め", raw: "cardápio completo", limit: 7, want: "cardápi..."},
		{name: "境界値: 上限ちょうど", raw: "abc", limit: 3, want: "abc"},
		{name: "境界値: 上限0は全文", raw: "abc", limit: 0, want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ParseError{Raw: tt.raw, Err: errors.New("x")}
			if got := err.RawPreview(tt.limit); got != tt.want {
				t.Errorf("RawPreview() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInputErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "正常系: 画像なし",
			err:  &ValidationError{Field: "images", Reason: "at least one image is required"},
			want: "Envie pelo menos uma imagem ou URL do cardápio.",
		},
		{
			name: "正常系: 画像の枚数超過",
			err:  &ValidationError{Field: "images", Reason: "at most 10 images are allowed", Limit: 10},
			want: "Envie no máximo 10 imagens por vez.",
		},
		{
			name: "正常系: APIキー未設定",
			err:  &ValidationError{Field: "api_key", Reason: "api key is not configured"},
			want: "Chave da API não configurada. Defina a chave antes de enviar.",
		},
		{
			name: "正常系: サイズ超過",
			err:  &ValidationError{Field: "image", Value: "menu.png", Reason: "image size exceeds 1024 bytes", Limit: 1024},
			want: "Imagem maior que o limite de 1024 bytes.",
		},
		{
			name: "正常系: 複数の不正なURL",
			err: ValidationErrors{
				{Field: "url", Value: "ftp://x", Reason: "unsupported scheme: ftp"},
				{Field: "url", Value: "menu", Reason: "url must be absolute"},
			},
			want: "URL inválida: ftp://x; URL inválida: menu",
		},
		{
			name: "正常系: 読み込み失敗",
			err:  &ReadError{Name: "menu.png", Err: errors.New("invalid image format")},
			want: `Não foi possível ler a imagem "menu.png".`,
		},
		{
			name: "正常系: ラップされた入力エラー",
			err:  fmt.Errorf("collect: %w", &ValidationError{Field: "form", Reason: "field exceeds 65536 bytes"}),
			want: "Campo do formulário excede o tamanho permitido.",
		},
		{
			name: "境界値: 未知のエラー",
			err:  errors.New("boom"),
			want: "Requisição inválida.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InputErrorMessage(tt.err); got != tt.want {
				t.Errorf("InputErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "url", Value: "a", Reason: "malformed url"},
		{Field: "url", Value: "b", Reason: "malformed url"},
	}

	msg := errs.Error()
	if !strings.HasPrefix(msg, "2 invalid inputs") {
		t.Errorf("Error() = %s, want prefix '2 invalid inputs'", msg)
	}
	if !strings.Contains(msg, `"a"`) || !strings.Contains(msg, `"b"`) {
		t.Errorf("Error() = %s, want both values", msg)
	}
}
