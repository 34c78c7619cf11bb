package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// MessageParseFailure モデル出力がJSONとして解釈できなかったときの表示文言
	MessageParseFailure = "Falha ao processar a resposta do modelo. O formato retornado não é um JSON válido."
	// messageTransportFailurePrefix モデルAPI呼び出し失敗時の表示文言
	messageTransportFailurePrefix = "Falha ao analisar o cardápio: "
)

// MenuItem メニュー項目
type MenuItem struct {
	DishName    string `json:"dish_name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Category    string `json:"category"`
}

// UnmarshalJSON dishName表記や数値の価格も受け付ける
//
// null の要素はメニュー項目として扱わない。
func (m *MenuItem) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errors.New("menu item must be a JSON object")
	}

	var raw struct {
		DishName      *string         `json:"dish_name"`
		DishNameCamel *string         `json:"dishName"`
		Description   *string         `json:"description"`
		Price         json.RawMessage `json:"price"`
		Category      *string         `json:"category"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = MenuItem{}
	switch {
	case raw.DishName != nil:
		m.DishName = *raw.DishName
	case raw.DishNameCamel != nil:
		m.DishName = *raw.DishNameCamel
	}
	if raw.Description != nil {
		m.Description = *raw.Description
	}
	if raw.Category != nil {
		m.Category = *raw.Category
	}

	price := bytes.TrimSpace(raw.Price)
	switch {
	case len(price) == 0 || bytes.Equal(price, []byte("null")):
	case price[0] == '"':
		if err := json.Unmarshal(price, &m.Price); err != nil {
			return err
		}
	default:
		// 数値で返ってきた場合は表記をそのまま保持する
		var n json.Number
		if err := json.Unmarshal(price, &n); err != nil {
			return fmt.Errorf("price must be a string or number: %w", err)
		}
		m.Price = n.String()
	}

	return nil
}

// MenuAnalysisResult メニュー解析結果
//
// Failure が nil なら Items が有効、そうでなければ Error に表示用メッセージが入る。
type MenuAnalysisResult struct {
	Items        []MenuItem `json:"items"`
	Error        string     `json:"error,omitempty"`
	Failure      error      `json:"-"`
	InputTokens  int        `json:"-"`
	OutputTokens int        `json:"-"`
	Model        string     `json:"-"`
	Cached       bool       `json:"-"`
}

// NewSuccessResult 成功結果を作成
func NewSuccessResult(items []MenuItem, completion *Completion) *MenuAnalysisResult {
	if items == nil {
		items = []MenuItem{}
	}
	result := &MenuAnalysisResult{Items: items}
	if completion != nil {
		result.InputTokens = completion.InputTokens
		result.OutputTokens = completion.OutputTokens
		result.Model = completion.Model
	}
	return result
}

// NewFailureResult 失敗結果を作成（Itemsは空配列）
func NewFailureResult(err error) *MenuAnalysisResult {
	return &MenuAnalysisResult{
		Items:   []MenuItem{},
		Error:   FailureMessage(err),
		Failure: err,
	}
}

// Failed 失敗結果かどうか
func (r *MenuAnalysisResult) Failed() bool {
	return r.Failure != nil || r.Error != ""
}

// TotalTokens 合計トークン数を返す
func (r *MenuAnalysisResult) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// FailureMessage 失敗をユーザー向けの短い文言に変換
func FailureMessage(err error) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return MessageParseFailure
	}
	if IsValidation(err) {
		return InputErrorMessage(err)
	}
	return messageTransportFailurePrefix + err.Error()
}

// RenderItemsJSON メニュー項目を2スペースインデントのJSONに整形
func RenderItemsJSON(items []MenuItem) (string, error) {
	if items == nil {
		items = []MenuItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render items: %w", err)
	}
	return string(data), nil
}
