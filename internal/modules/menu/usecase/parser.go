package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"menu-analyzer-app/internal/modules/menu/domain"
)

const codeFence = "```"

// StripCodeFences 先頭と末尾のMarkdownコードブロック記号を取り除く
//
// 開始側は ```json のような言語タグも含めて除去する。フェンスが無ければ前後の空白を除くだけ。
func StripCodeFences(text string) string {
	s := strings.TrimSpace(text)

	if rest, ok := strings.CutPrefix(s, codeFence); ok {
		if idx := strings.IndexByte(rest, '\n'); idx != -1 && isLanguageTag(strings.TrimSpace(rest[:idx])) {
			rest = rest[idx+1:]
		} else if idx == -1 {
			// 1行に収まっている場合（```json[...]```）
			rest = strings.TrimLeftFunc(rest, isLanguageTagRune)
		}
		s = strings.TrimSpace(rest)
	}

	if rest, ok := strings.CutSuffix(s, codeFence); ok {
		s = rest
	}

	return strings.TrimSpace(s)
}

func isLanguageTag(tag string) bool {
	for _, r := range tag {
		if !isLanguageTagRune(r) {
			return false
		}
	}
	return true
}

func isLanguageTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '+'
}

// ParseMenuItems モデル出力をメニュー項目の配列として解釈
func ParseMenuItems(completion string) ([]domain.MenuItem, error) {
	cleaned := StripCodeFences(completion)

	if !strings.HasPrefix(cleaned, "[") {
		return nil, &domain.ParseError{Raw: completion, Err: errors.New("completion is not a JSON array")}
	}

	var items []domain.MenuItem
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, &domain.ParseError{Raw: completion, Err: fmt.Errorf("failed to unmarshal JSON: %w", err)}
	}

	if items == nil {
		items = []domain.MenuItem{}
	}
	return items, nil
}
