package usecase

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"menu-analyzer-app/internal/modules/menu/domain"
)

// createTestPNG テスト用の小さなPNG画像を生成
func createTestPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestImageNormalizer_FromURLs(t *testing.T) {
	n := NewImageNormalizer(1024)

	tests := []struct {
		name        string
		raws        []string
		wantValues  []string
		wantInvalid int
	}{
		{
			name:       "正常系: 順序を保持",
			raws:       []string{"https://x/a.jpg", "https://x/b.jpg"},
			wantValues: []string{"https://x/a.jpg", "https://x/b.jpg"},
		},
		{
			name:       "正常系: 空の要素は除外",
			raws:       []string{"", "https://x/a.jpg", "   "},
			wantValues: []string{"https://x/a.jpg"},
		},
		{
			name:        "異常系: 不正なURLはまとめて報告",
			raws:        []string{"not a url", "https://x/a.jpg", "ftp://x/b.jpg"},
			wantValues:  []string{"https://x/a.jpg"},
			wantInvalid: 2,
		},
		{
			name:       "境界値: 空リスト",
			raws:       nil,
			wantValues: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs, err := n.FromURLs(tt.raws)
			if tt.wantInvalid > 0 {
				var errs domain.ValidationErrors
				if !errors.As(err, &errs) {
					t.Fatalf("Expected domain.ValidationErrors, got %v", err)
				}
				if len(errs) != tt.wantInvalid {
					t.Errorf("len(errs) = %d, want %d", len(errs), tt.wantInvalid)
				}
			} else if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if len(inputs) != len(tt.wantValues) {
				t.Fatalf("len(inputs) = %d, want %d", len(inputs), len(tt.wantValues))
			}
			for i, want := range tt.wantValues {
				if inputs[i].Kind() != domain.ImageKindURL {
					t.Errorf("inputs[%d].Kind() = %s, want url", i, inputs[i].Kind())
				}
				if inputs[i].Value() != want {
					t.Errorf("inputs[%d].Value() = %s, want %s", i, inputs[i].Value(), want)
				}
			}
		})
	}
}

func TestImageNormalizer_FromText(t *testing.T) {
	n := NewImageNormalizer(1024)

	inputs, err := n.FromText("cardápio: https://example.com/a.jpg e também https://cdn.example.com/b.png")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("len(inputs) = %d, want 2", len(inputs))
	}
	if inputs[0].Value() != "https://example.com/a.jpg" || inputs[1].Value() != "https://cdn.example.com/b.png" {
		t.Errorf("inputs = [%s %s]", inputs[0].Value(), inputs[1].Value())
	}
}

func TestImageNormalizer_FromFile(t *testing.T) {
	pngData := createTestPNG(t)

	tests := []struct {
		name          string
		fileName      string
		declaredType  string
		data          []byte
		maxBytes      int64
		wantMediaType string
		wantErr       func(error) bool
	}{
		{
			name:          "正常系: PNG（申告あり）",
			fileName:      "menu.png",
			declaredType:  "image/png",
			data:          pngData,
			maxBytes:      1 << 20,
			wantMediaType: "image/png",
		},
		{
			name:          "正常系: PNG（申告なしは中身から判定）",
			fileName:      "menu",
			declaredType:  "",
			data:          pngData,
			maxBytes:      1 << 20,
			wantMediaType: "image/png",
		},
		{
			name:          "正常系: PDF",
			fileName:      "menu.pdf",
			declaredType:  "application/pdf",
			data:          []byte("%PDF-1.4\n%test\n"),
			maxBytes:      1 << 20,
			wantMediaType: "application/pdf",
		},
		{
			name:         "異常系: テキストファイル",
			fileName:     "notes.txt",
			declaredType: "text/plain",
			data:         []byte("hello"),
			maxBytes:     1 << 20,
			wantErr:      func(err error) bool { return errors.Is(err, domain.ErrUnsupportedMediaType) },
		},
		{
			name:         "異常系: PNGと申告された壊れたデータ",
			fileName:     "broken.png",
			declaredType: "image/png",
			data:         []byte("not really a png"),
			maxBytes:     1 << 20,
			wantErr: func(err error) bool {
				var r *domain.ReadError
				return errors.As(err, &r)
			},
		},
		{
			name:         "異常系: サイズ超過",
			fileName:     "big.png",
			declaredType: "image/png",
			data:         pngData,
			maxBytes:     int64(len(pngData) - 1),
			wantErr: func(err error) bool {
				var v *domain.ValidationError
				return errors.As(err, &v)
			},
		},
		{
			name:         "境界値: 空ファイル",
			fileName:     "empty.png",
			declaredType: "image/png",
			data:         []byte{},
			maxBytes:     1 << 20,
			wantErr: func(err error) bool {
				var r *domain.ReadError
				return errors.As(err, &r)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewImageNormalizer(tt.maxBytes)
			img, err := n.FromFile(tt.fileName, tt.declaredType, bytes.NewReader(tt.data))

			if tt.wantErr != nil {
				if err == nil || !tt.wantErr(err) {
					t.Fatalf("Unexpected error: %v", err)
				}
				if !domain.IsValidation(err) {
					t.Errorf("Expected validation-class error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if img.Kind() != domain.ImageKindInlineData {
				t.Errorf("Kind() = %s, want inline_data", img.Kind())
			}
			if !strings.HasPrefix(img.Value(), "data:"+tt.wantMediaType+";base64,") {
				t.Errorf("Value() = %.40s..., want prefix data:%s;base64,", img.Value(), tt.wantMediaType)
			}
		})
	}
}

func TestImageNormalizer_FromInline(t *testing.T) {
	pngData := createTestPNG(t)
	pngURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)

	tests := []struct {
		name           string
		maxBytes       int64
		dataURI        string
		wantUnsupport  bool
		wantReadError  bool
		wantValidation bool
	}{
		{
			name:     "正常系: デコードできるPNG",
			maxBytes: 1 << 20,
			dataURI:  pngURI,
		},
		{
			name:     "正常系: PDF",
			maxBytes: 1 << 20,
			dataURI:  "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4\n")),
		},
		{
			name:          "異常系: HTMLは対象外",
			maxBytes:      1 << 20,
			dataURI:       "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte("<p>menu</p>")),
			wantUnsupport: true,
		},
		{
			name:          "異常系: PNGとして読めない中身",
			maxBytes:      1 << 20,
			dataURI:       "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a png")),
			wantReadError: true,
		},
		{
			name:          "異常系: PDFヘッダーがない",
			maxBytes:      1 << 20,
			dataURI:       "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("plain text")),
			wantReadError: true,
		},
		{
			name:           "境界値: サイズ上限超過",
			maxBytes:       int64(len(pngData) - 1),
			dataURI:        pngURI,
			wantValidation: true,
		},
		{
			name:           "異常系: data URIではない",
			maxBytes:       1 << 20,
			dataURI:        "https://example.com/a.png",
			wantValidation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := NewImageNormalizer(tt.maxBytes).FromInline(tt.dataURI)

			var readErr *domain.ReadError
			var v *domain.ValidationError
			switch {
			case tt.wantUnsupport:
				if !errors.Is(err, domain.ErrUnsupportedMediaType) {
					t.Errorf("Expected ErrUnsupportedMediaType, got %v", err)
				}
			case tt.wantReadError:
				if !errors.As(err, &readErr) {
					t.Errorf("Expected *domain.ReadError, got %v", err)
				}
			case tt.wantValidation:
				if !errors.As(err, &v) {
					t.Errorf("Expected *domain.ValidationError, got %v", err)
				}
			default:
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if img.Kind() != domain.ImageKindInlineData {
					t.Errorf("Kind() = %s, want %s", img.Kind(), domain.ImageKindInlineData)
				}
			}
		})
	}
}

func TestImageCollector_AddInline(t *testing.T) {
	pngURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(createTestPNG(t))
	htmlURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte("<p>menu</p>"))
	c := NewImageCollector(NewImageNormalizer(1 << 20))

	for _, uri := range []string{pngURI, htmlURI, pngURI} {
		if err := c.AddInline(uri); err != nil {
			t.Fatalf("AddInline() error = %v", err)
		}
	}

	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	skipped := c.Skipped()
	if len(skipped) != 1 || skipped[0] != "images[1]" {
		t.Errorf("Skipped() = %v, want [images[1]]", skipped)
	}

	err := c.AddInline("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not a png")))
	if !domain.IsValidation(err) {
		t.Errorf("Expected validation error for undecodable image, got %v", err)
	}
}

func TestImageCollector(t *testing.T) {
	pngData := createTestPNG(t)
	c := NewImageCollector(NewImageNormalizer(1 << 20))

	if err := c.AddURL("https://x/a.jpg"); err != nil {
		t.Fatalf("AddURL() error = %v", err)
	}
	if err := c.AddURL(""); err != nil {
		t.Fatalf("AddURL(\"\") error = %v", err)
	}
	if err := c.AddFile("menu.png", "image/png", bytes.NewReader(pngData)); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	if err := c.AddFile("notes.txt", "text/plain", strings.NewReader("hello")); err != nil {
		t.Fatalf("AddFile() for unsupported type should not fail: %v", err)
	}
	if err := c.AddText("veja https://example.com/b.jpg"); err != nil {
		t.Fatalf("AddText() error = %v", err)
	}

	inputs := c.Inputs()
	if c.Len() != 3 || len(inputs) != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	wantKinds := []domain.ImageKind{domain.ImageKindURL, domain.ImageKindInlineData, domain.ImageKindURL}
	for i, want := range wantKinds {
		if inputs[i].Kind() != want {
			t.Errorf("inputs[%d].Kind() = %s, want %s", i, inputs[i].Kind(), want)
		}
	}
	if inputs[2].Value() != "https://example.com/b.jpg" {
		t.Errorf("inputs[2].Value() = %s", inputs[2].Value())
	}

	skipped := c.Skipped()
	if len(skipped) != 1 || skipped[0] != "notes.txt" {
		t.Errorf("Skipped() = %v, want [notes.txt]", skipped)
	}

	// 返り値を変更しても内部状態には影響しない
	inputs[0] = nil
	if c.Inputs()[0] == nil {
		t.Error("Inputs() should return a copy")
	}
}
