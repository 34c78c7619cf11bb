package credential

import (
	"errors"
	"strings"
	"sync"
)

// ErrEmptyCredential 空のAPIキー
var ErrEmptyCredential = errors.New("api key is empty")

// MemoryStore 実行中に設定されたAPIキーの保管先
type MemoryStore struct {
	mu  sync.RWMutex
	key string
}

// NewMemoryStore 新しいMemoryStoreを作成
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Credential 保存されているAPIキーを返す
func (s *MemoryStore) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key, s.key != ""
}

// SetCredential APIキーを保存（前後の空白は除去）
func (s *MemoryStore) SetCredential(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return ErrEmptyCredential
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = trimmed
	return nil
}

// ClearCredential 保存されているAPIキーを削除
func (s *MemoryStore) ClearCredential() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = ""
}

// Chain 設定ファイル・環境変数のキーを優先し、無ければ実行時に保存されたキーを使う
type Chain struct {
	configured string
	store      *MemoryStore
}

// NewChain 新しいChainを作成
func NewChain(configured string, store *MemoryStore) *Chain {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Chain{configured: strings.TrimSpace(configured), store: store}
}

// Credential 有効なAPIキーを返す
func (c *Chain) Credential() (string, bool) {
	if c.configured != "" {
		return c.configured, true
	}
	return c.store.Credential()
}

// SetCredential 実行時のAPIキーを保存
func (c *Chain) SetCredential(key string) error {
	return c.store.SetCredential(key)
}

// ClearCredential 実行時のAPIキーを削除（設定ファイルのキーは残る）
func (c *Chain) ClearCredential() {
	c.store.ClearCredential()
}

// Source 有効なAPIキーの出どころ（"config" / "runtime" / ""）
func (c *Chain) Source() string {
	if c.configured != "" {
		return "config"
	}
	if _, ok := c.store.Credential(); ok {
		return "runtime"
	}
	return ""
}
