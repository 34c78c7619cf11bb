package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader リクエストIDのヘッダー名
const RequestIDHeader = "X-Request-ID"

// responseWriter ステータスコードをキャプチャするためのラッパー
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// requestID 受け取ったIDを引き継ぎ、無ければ採番してレスポンスに付ける
func requestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)
	return id
}

func serveAndLog(w http.ResponseWriter, r *http.Request, next http.Handler) {
	start := time.Now()
	id := requestID(w, r)

	rw := &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
	next.ServeHTTP(rw, r)

	level := slog.LevelInfo
	if rw.statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	} else if rw.statusCode >= http.StatusBadRequest {
		level = slog.LevelWarn
	}

	slog.Log(r.Context(), level, "HTTP request",
		"request_id", id,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rw.statusCode,
		"bytes", rw.written,
		"duration", time.Since(start),
	)
}

// Logger ロギングミドルウェア
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveAndLog(w, r, next)
	})
}

// LoggerWithHealthCheck ヘルスチェックを除外するロギングミドルウェア
func LoggerWithHealthCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			serveAndLog(w, r, next)
			return
		}

		// ヘルスチェックは異常時のみログ出力
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(rw, r)

		if rw.statusCode != http.StatusOK {
			slog.Error("Health check failed",
				"status", rw.statusCode,
			)
		}
	})
}
