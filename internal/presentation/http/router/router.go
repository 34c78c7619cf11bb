package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"menu-analyzer-app/internal/presentation/di"
	"menu-analyzer-app/internal/presentation/http/middleware"
)

// NewRouter 新しいルーターを作成
func NewRouter(container *di.Container) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.Handle("/health", container.HealthHandler()).Methods(http.MethodGet)

	// Menu API ハンドラー
	menuHandler := container.MenuHandler()
	r.HandleFunc("/api/v1/menu/analyze", menuHandler.HandleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/menu/runs", menuHandler.HandleRuns).Methods(http.MethodGet)

	// Credential ハンドラー
	credentialHandler := container.CredentialHandler()
	r.HandleFunc("/api/v1/credential", credentialHandler.HandleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/credential", credentialHandler.HandlePut).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/credential", credentialHandler.HandleDelete).Methods(http.MethodDelete)

	// ミドルウェアの適用
	var h http.Handler = r
	h = middleware.Recovery(h)
	h = middleware.LoggerWithHealthCheck(h)
	h = middleware.CORS(h)

	return h
}
