package handler

import (
	"encoding/json"
	"net/http"
)

// Version アプリケーションのバージョン
const Version = "1.0.0"

// HealthHandler ヘルスチェックのハンドラー
type HealthHandler struct {
	provider      string
	cacheEnabled  bool
	runLogEnabled bool
}

// NewHealthHandler 新しいHealthHandlerを作成
func NewHealthHandler(provider string, cacheEnabled, runLogEnabled bool) *HealthHandler {
	return &HealthHandler{
		provider:      provider,
		cacheEnabled:  cacheEnabled,
		runLogEnabled: runLogEnabled,
	}
}

// HealthResponse ヘルスチェックのレスポンス
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Provider string `json:"provider"`
	Cache    bool   `json:"cache"`
	RunLog   bool   `json:"run_log"`
}

// ServeHTTP ヘルスチェックを処理
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:   "ok",
		Version:  Version,
		Provider: h.provider,
		Cache:    h.cacheEnabled,
		RunLog:   h.runLogEnabled,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
