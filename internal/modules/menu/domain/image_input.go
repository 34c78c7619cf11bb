package domain

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

// ImageKind 画像入力の種類
type ImageKind string

const (
	// ImageKindURL 公開URLで参照される画像
	ImageKindURL ImageKind = "url"
	// ImageKindInlineData data URIとして埋め込まれた画像
	ImageKindInlineData ImageKind = "inline_data"
)

// ImageInput 解析対象の画像（URLImage か InlineImage のどちらか）
//
// 実装はこのパッケージ内の2型に限定される。
type ImageInput interface {
	Kind() ImageKind
	// Value モデルに渡す画像参照（URL または data URI）
	Value() string
	isImageInput()
}

// URLImage URLで参照される画像
type URLImage struct {
	url string
}

// NewURLImage 絶対URL（http/https）から画像入力を作成
func NewURLImage(raw string) (*URLImage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ValidationError{Field: "url", Reason: "url is empty"}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, &ValidationError{Field: "url", Value: raw, Reason: "malformed url"}
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, &ValidationError{Field: "url", Value: raw, Reason: "url must be absolute"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ValidationError{Field: "url", Value: raw, Reason: fmt.Sprintf("unsupported scheme: %s", u.Scheme)}
	}

	return &URLImage{url: trimmed}, nil
}

// Kind 種類を返す
func (i *URLImage) Kind() ImageKind { return ImageKindURL }

// Value URLを返す
func (i *URLImage) Value() string { return i.url }

func (i *URLImage) isImageInput() {}

// InlineImage data URIとして埋め込まれた画像
type InlineImage struct {
	mediaType string
	data      string // base64
}

// NewInlineImage バイト列からdata URI形式の画像入力を作成
func NewInlineImage(mediaType string, data []byte) (*InlineImage, error) {
	if mediaType == "" {
		return nil, &ValidationError{Field: "image", Reason: "media type is empty"}
	}
	if len(data) == 0 {
		return nil, &ValidationError{Field: "image", Reason: "image data is empty"}
	}

	return &InlineImage{
		mediaType: mediaType,
		data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// ParseInlineImage data URI文字列（data:<mime>;base64,<payload>）から画像入力を作成
func ParseInlineImage(dataURI string) (*InlineImage, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(dataURI), "data:")
	if !ok {
		return nil, &ValidationError{Field: "image", Reason: "data uri must start with data:"}
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, &ValidationError{Field: "image", Reason: "data uri has no payload"}
	}

	params, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, &ValidationError{Field: "image", Reason: "data uri must be base64 encoded"}
	}
	if params == "" {
		return nil, &ValidationError{Field: "image", Reason: "media type is empty"}
	}
	// charset などのパラメータは落として型だけを保持する
	mediaType, _, err := mime.ParseMediaType(params)
	if err != nil {
		return nil, &ValidationError{Field: "image", Reason: "malformed media type"}
	}

	if payload == "" {
		return nil, &ValidationError{Field: "image", Reason: "image data is empty"}
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return nil, &ValidationError{Field: "image", Reason: "invalid base64 payload"}
	}

	return &InlineImage{mediaType: mediaType, data: payload}, nil
}

// Kind 種類を返す
func (i *InlineImage) Kind() ImageKind { return ImageKindInlineData }

// Value data URIを返す
func (i *InlineImage) Value() string {
	return "data:" + i.mediaType + ";base64," + i.data
}

// MediaType MIMEタイプを返す
func (i *InlineImage) MediaType() string { return i.mediaType }

// Base64 base64エンコード済みのペイロードを返す
func (i *InlineImage) Base64() string { return i.data }

func (i *InlineImage) isImageInput() {}
