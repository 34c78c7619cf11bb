package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"menu-analyzer-app/internal/modules/menu/domain"
)

// CredentialStore APIキーの参照・更新と出どころの取得
type CredentialStore interface {
	domain.CredentialStore
	Source() string
}

// CredentialHandler APIキー設定のハンドラー
type CredentialHandler struct {
	store CredentialStore
}

// NewCredentialHandler 新しいCredentialHandlerを作成
func NewCredentialHandler(store CredentialStore) *CredentialHandler {
	return &CredentialHandler{store: store}
}

// CredentialRequest APIキー設定リクエスト
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// CredentialResponse APIキーの状態（キーそのものは返さない）
type CredentialResponse struct {
	Success    bool   `json:"success"`
	Configured bool   `json:"configured"`
	Source     string `json:"source,omitempty"`
	Error      string `json:"error,omitempty"`
}

// HandleGet APIキーの状態を返す
func (h *CredentialHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.writeState(w, http.StatusOK)
}

// HandlePut APIキーを設定し、更新後の状態を返す
func (h *CredentialHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, CredentialResponse{Success: false, Error: "Corpo da requisição inválido."})
		return
	}

	if err := h.store.SetCredential(req.APIKey); err != nil {
		slog.Info("API key update rejected", "error", err)
		h.writeJSON(w, http.StatusBadRequest, CredentialResponse{Success: false, Error: "A chave da API não pode ficar vazia."})
		return
	}

	slog.Info("API key updated", "source", h.store.Source())
	h.writeState(w, http.StatusOK)
}

// HandleDelete 実行時に設定したAPIキーを削除
func (h *CredentialHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.store.ClearCredential()
	slog.Info("API key cleared", "source", h.store.Source())
	h.writeState(w, http.StatusOK)
}

func (h *CredentialHandler) writeState(w http.ResponseWriter, statusCode int) {
	_, configured := h.store.Credential()
	h.writeJSON(w, statusCode, CredentialResponse{
		Success:    true,
		Configured: configured,
		Source:     h.store.Source(),
	})
}

func (h *CredentialHandler) writeJSON(w http.ResponseWriter, statusCode int, body CredentialResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(body)
}
