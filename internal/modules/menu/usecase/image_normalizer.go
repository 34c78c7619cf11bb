package usecase

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF形式のサポート
	_ "image/jpeg" // JPEG形式のサポート
	_ "image/png"  // PNG形式のサポート
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/mvdan/xurls"
	_ "golang.org/x/image/webp" // WebP形式のサポート

	"menu-analyzer-app/internal/modules/menu/domain"
)

// inlineImageName data URIで受け取った画像のエラー表示名
const inlineImageName = "inline image"

// decodableImageTypes デコードして中身を確認できる画像形式
var decodableImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ImageNormalizer 画像の入力元をImageInputに変換する
type ImageNormalizer struct {
	maxImageBytes int64
}

// NewImageNormalizer 新しいImageNormalizerを作成
func NewImageNormalizer(maxImageBytes int64) *ImageNormalizer {
	return &ImageNormalizer{maxImageBytes: maxImageBytes}
}

// FromURL URL文字列をImageInputに変換
func (n *ImageNormalizer) FromURL(raw string) (domain.ImageInput, error) {
	img, err := domain.NewURLImage(raw)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// FromURLs URLのリストを順序を保ったまま変換する
//
// 空の要素は黙って除外する。不正なURLはすべてまとめて domain.ValidationErrors で返すが、
// 有効なURLの変換結果も返す。
func (n *ImageNormalizer) FromURLs(raws []string) ([]domain.ImageInput, error) {
	inputs := make([]domain.ImageInput, 0, len(raws))
	var errs domain.ValidationErrors

	for _, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		img, err := n.FromURL(raw)
		if err != nil {
			var v *domain.ValidationError
			if errors.As(err, &v) {
				errs = append(errs, v)
				continue
			}
			return nil, err
		}
		inputs = append(inputs, img)
	}

	if len(errs) > 0 {
		return inputs, errs
	}
	return inputs, nil
}

// FromText 自由入力テキストに含まれるURLを出現順に変換
func (n *ImageNormalizer) FromText(text string) ([]domain.ImageInput, error) {
	return n.FromURLs(xurls.Strict.FindAllString(text, -1))
}

// FromInline data URI文字列をImageInputに変換
//
// ファイルと同じく画像・PDF以外は domain.ErrUnsupportedMediaType を返す。
func (n *ImageNormalizer) FromInline(dataURI string) (domain.ImageInput, error) {
	img, err := domain.ParseInlineImage(dataURI)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(img.Base64())
	if err != nil {
		return nil, &domain.ValidationError{Field: "image", Reason: "invalid base64 payload"}
	}
	if n.maxImageBytes > 0 && int64(len(data)) > n.maxImageBytes {
		return nil, &domain.ValidationError{Field: "image", Reason: fmt.Sprintf("image size exceeds %d bytes", n.maxImageBytes), Limit: n.maxImageBytes}
	}

	if !isAcceptedMediaType(img.MediaType()) {
		return nil, fmt.Errorf("%s (%s): %w", inlineImageName, img.MediaType(), domain.ErrUnsupportedMediaType)
	}
	if err := verifyDecodable(img.MediaType(), data); err != nil {
		return nil, &domain.ReadError{Name: inlineImageName, Err: err}
	}
	return img, nil
}

// FromFile ファイルを読み込みdata URI形式のImageInputに変換
//
// 画像・PDF以外は domain.ErrUnsupportedMediaType を返し、エンコードは行わない。
func (n *ImageNormalizer) FromFile(name, declaredType string, r io.Reader) (domain.ImageInput, error) {
	reader := r
	if n.maxImageBytes > 0 {
		reader = io.LimitReader(r, n.maxImageBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &domain.ReadError{Name: name, Err: err}
	}
	if len(data) == 0 {
		return nil, &domain.ReadError{Name: name, Err: errors.New("file is empty")}
	}
	if n.maxImageBytes > 0 && int64(len(data)) > n.maxImageBytes {
		return nil, &domain.ValidationError{Field: "image", Value: name, Reason: fmt.Sprintf("image size exceeds %d bytes", n.maxImageBytes), Limit: n.maxImageBytes}
	}

	mediaType := detectMediaType(declaredType, data)
	if !isAcceptedMediaType(mediaType) {
		return nil, fmt.Errorf("%s (%s): %w", name, mediaType, domain.ErrUnsupportedMediaType)
	}

	if err := verifyDecodable(mediaType, data); err != nil {
		return nil, &domain.ReadError{Name: name, Err: err}
	}

	img, err := domain.NewInlineImage(mediaType, data)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// detectMediaType 申告されたContent-Typeを優先し、無ければ中身から判定
func detectMediaType(declaredType string, data []byte) string {
	if declaredType != "" {
		if mediaType, _, err := mime.ParseMediaType(declaredType); err == nil && mediaType != "application/octet-stream" {
			return strings.ToLower(mediaType)
		}
	}

	sniffed := http.DetectContentType(data)
	mediaType, _, err := mime.ParseMediaType(sniffed)
	if err != nil {
		return sniffed
	}
	return mediaType
}

func isAcceptedMediaType(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf"
}

// verifyDecodable ファイルが申告どおりの形式として読めるか確認
func verifyDecodable(mediaType string, data []byte) error {
	if mediaType == "application/pdf" {
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			return errors.New("invalid pdf header")
		}
		return nil
	}

	if !decodableImageTypes[mediaType] {
		return nil
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("invalid image format: %w", err)
	}
	return nil
}

// ImageCollector 複数の入力元から順序を保ってImageInputを集める
type ImageCollector struct {
	normalizer *ImageNormalizer
	inputs     []domain.ImageInput
	skipped    []string
	inlines    int
}

// NewImageCollector 新しいImageCollectorを作成
func NewImageCollector(normalizer *ImageNormalizer) *ImageCollector {
	return &ImageCollector{normalizer: normalizer}
}

// AddURL URLを追加（空文字列は無視）
func (c *ImageCollector) AddURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	img, err := c.normalizer.FromURL(raw)
	if err != nil {
		return err
	}
	c.inputs = append(c.inputs, img)
	return nil
}

// AddURLs URLのリストを追加
func (c *ImageCollector) AddURLs(raws []string) error {
	inputs, err := c.normalizer.FromURLs(raws)
	c.inputs = append(c.inputs, inputs...)
	return err
}

// AddText テキスト中のURLを追加
func (c *ImageCollector) AddText(text string) error {
	inputs, err := c.normalizer.FromText(text)
	c.inputs = append(c.inputs, inputs...)
	return err
}

// AddInline data URIを追加（画像・PDF以外は images[i] としてスキップを記録）
func (c *ImageCollector) AddInline(dataURI string) error {
	index := c.inlines
	c.inlines++

	img, err := c.normalizer.FromInline(dataURI)
	if errors.Is(err, domain.ErrUnsupportedMediaType) {
		c.skipped = append(c.skipped, fmt.Sprintf("images[%d]", index))
		return nil
	}
	if err != nil {
		return err
	}
	c.inputs = append(c.inputs, img)
	return nil
}

// AddFile ファイルを追加（画像・PDF以外はスキップとして記録）
func (c *ImageCollector) AddFile(name, declaredType string, r io.Reader) error {
	img, err := c.normalizer.FromFile(name, declaredType, r)
	if errors.Is(err, domain.ErrUnsupportedMediaType) {
		c.skipped = append(c.skipped, name)
		return nil
	}
	if err != nil {
		return err
	}
	c.inputs = append(c.inputs, img)
	return nil
}

// Inputs 追加された順のImageInputを返す
func (c *ImageCollector) Inputs() []domain.ImageInput {
	inputs := make([]domain.ImageInput, len(c.inputs))
	copy(inputs, c.inputs)
	return inputs
}

// Skipped 対象外としてスキップしたファイル名を返す
func (c *ImageCollector) Skipped() []string {
	skipped := make([]string, len(c.skipped))
	copy(skipped, c.skipped)
	return skipped
}

// Len 集めた画像の数
func (c *ImageCollector) Len() int {
	return len(c.inputs)
}
