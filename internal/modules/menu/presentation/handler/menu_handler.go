package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"menu-analyzer-app/internal/modules/menu/domain"
	"menu-analyzer-app/internal/modules/menu/usecase"
)

// errInvalidBody ボディがフォーム・JSONとして読めない
var errInvalidBody = errors.New("invalid request body")

const (
	// maxFieldBytes url / text パートの上限
	maxFieldBytes = 64 << 10
	// bodyOverhead マルチパートの境界やヘッダー分の余裕
	bodyOverhead = 1 << 20
)

// MenuAnalyzer ハンドラーが利用する解析ユースケース
type MenuAnalyzer interface {
	ValidateSubmission(images []domain.ImageInput) error
	Analyze(ctx context.Context, images []domain.ImageInput) *domain.MenuAnalysisResult
	RecentRuns(ctx context.Context, limit int) ([]*domain.AnalysisRun, error)
	GetProviderName() string
}

// MenuHandler メニュー解析APIのハンドラー
type MenuHandler struct {
	analyzer     MenuAnalyzer
	normalizer   *usecase.ImageNormalizer
	maxBodyBytes int64
}

// NewMenuHandler 新しいMenuHandlerを作成
func NewMenuHandler(analyzer MenuAnalyzer, normalizer *usecase.ImageNormalizer, maxBodyBytes int64) *MenuHandler {
	return &MenuHandler{
		analyzer:     analyzer,
		normalizer:   normalizer,
		maxBodyBytes: maxBodyBytes,
	}
}

// AnalyzeRequest JSONで送る場合のリクエスト
type AnalyzeRequest struct {
	URLs   []string `json:"urls"`
	Images []string `json:"images"`
}

// AnalyzeResponse メニュー解析APIレスポンス
type AnalyzeResponse struct {
	Success bool              `json:"success"`
	Items   []domain.MenuItem `json:"items"`
	Error   string            `json:"error,omitempty"`
	Skipped []string          `json:"skipped,omitempty"`
	Tokens  *AITokensResponse `json:"tokens,omitempty"`
	Cached  bool              `json:"cached"`
}

// AITokensResponse AIトークン使用量のレスポンス
type AITokensResponse struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// RunResponse 実行記録のレスポンス
type RunResponse struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	ImageCount   int       `json:"image_count"`
	ItemCount    int       `json:"item_count"`
	Outcome      string    `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	DurationMS   int64     `json:"duration_ms"`
	Cached       bool      `json:"cached"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunsResponse 実行記録一覧のレスポンス
type RunsResponse struct {
	Success bool          `json:"success"`
	Runs    []RunResponse `json:"runs"`
	Error   string        `json:"error,omitempty"`
}

// HandleAnalyze メニュー画像解析ハンドラー
func (h *MenuHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes+bodyOverhead)
	}

	collector := usecase.NewImageCollector(h.normalizer)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	switch mediaType {
	case "multipart/form-data":
		err = h.collectMultipart(r, collector)
	case "application/json":
		err = h.collectJSON(r, collector)
	default:
		h.sendError(w, "Envie o conteúdo como multipart/form-data ou application/json.", http.StatusUnsupportedMediaType)
		return
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.sendError(w, "O corpo da requisição excede o tamanho permitido.", http.StatusRequestEntityTooLarge)
			return
		}
		slog.Info("Menu analysis request rejected", "error", err)
		h.sendError(w, requestErrorMessage(err), http.StatusBadRequest)
		return
	}

	images := collector.Inputs()
	if err := h.analyzer.ValidateSubmission(images); err != nil {
		slog.Info("Menu analysis submission rejected", "error", err)
		h.writeJSON(w, http.StatusBadRequest, AnalyzeResponse{
			Success: false,
			Items:   []domain.MenuItem{},
			Error:   domain.InputErrorMessage(err),
			Skipped: collector.Skipped(),
		})
		return
	}

	result := h.analyzer.Analyze(r.Context(), images)

	response := AnalyzeResponse{
		Success: !result.Failed(),
		Items:   result.Items,
		Error:   result.Error,
		Skipped: collector.Skipped(),
		Cached:  result.Cached,
	}
	if response.Items == nil {
		response.Items = []domain.MenuItem{}
	}
	if result.TotalTokens() > 0 || !result.Cached {
		response.Tokens = &AITokensResponse{
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
			TotalTokens:  result.TotalTokens(),
		}
	}

	if result.Cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	h.writeJSON(w, statusFor(result), response)
}

// HandleRuns 直近の実行記録を返す
func (h *MenuHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.sendError(w, "O parâmetro limit deve ser um inteiro positivo.", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.analyzer.RecentRuns(r.Context(), limit)
	if errors.Is(err, usecase.ErrRunLogDisabled) {
		h.writeJSON(w, http.StatusServiceUnavailable, RunsResponse{Success: false, Runs: []RunResponse{}, Error: "O registro de análises está desativado."})
		return
	}
	if err != nil {
		slog.Error("Failed to load analysis runs", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, RunsResponse{Success: false, Runs: []RunResponse{}, Error: "Falha ao carregar o registro de análises."})
		return
	}

	response := RunsResponse{Success: true, Runs: make([]RunResponse, 0, len(runs))}
	for _, run := range runs {
		response.Runs = append(response.Runs, RunResponse{
			ID:           run.ID,
			Provider:     run.Provider,
			Model:        run.Model,
			ImageCount:   run.ImageCount,
			ItemCount:    run.ItemCount,
			Outcome:      string(run.Outcome),
			Error:        run.ErrorMessage,
			InputTokens:  run.InputTokens,
			OutputTokens: run.OutputTokens,
			DurationMS:   run.Duration.Milliseconds(),
			Cached:       run.Cached,
			CreatedAt:    run.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, response)
}

// collectMultipart パートを送信順に読み、画像入力を集める
func (h *MenuHandler) collectMultipart(r *http.Request, collector *usecase.ImageCollector) error {
	reader, err := r.MultipartReader()
	if err != nil {
		return fmt.Errorf("%w: failed to parse form: %v", errInvalidBody, err)
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				return err
			}
			return fmt.Errorf("%w: failed to read form: %v", errInvalidBody, err)
		}

		err = h.collectPart(part.FormName(), part.FileName(), part.Header.Get("Content-Type"), part, collector)
		_ = part.Close()
		if err != nil {
			return err
		}
	}
}

func (h *MenuHandler) collectPart(field, fileName, contentType string, body io.Reader, collector *usecase.ImageCollector) error {
	switch field {
	case "image", "images":
		if fileName == "" {
			fileName = field
		}
		return collector.AddFile(fileName, contentType, body)
	case "url", "urls":
		value, err := readField(body)
		if err != nil {
			return err
		}
		return collector.AddURL(value)
	case "text":
		value, err := readField(body)
		if err != nil {
			return err
		}
		return collector.AddText(value)
	default:
		// 未知のパートは読み捨てる
		_, err := io.Copy(io.Discard, body)
		return err
	}
}

// collectJSON JSONボディから画像入力を集める（URL → data URI の順）
func (h *MenuHandler) collectJSON(r *http.Request, collector *usecase.ImageCollector) error {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}

	if err := collector.AddURLs(req.URLs); err != nil {
		return err
	}
	for _, img := range req.Images {
		if strings.TrimSpace(img) == "" {
			continue
		}
		if err := collector.AddInline(img); err != nil {
			return err
		}
	}
	return nil
}

func readField(body io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxFieldBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read form field: %w", err)
	}
	if len(data) > maxFieldBytes {
		return "", &domain.ValidationError{Field: "form", Reason: fmt.Sprintf("field exceeds %d bytes", maxFieldBytes)}
	}
	return string(data), nil
}

// statusFor 解析結果からHTTPステータスを決める
func statusFor(result *domain.MenuAnalysisResult) int {
	if !result.Failed() {
		return http.StatusOK
	}

	var parseErr *domain.ParseError
	var transportErr *domain.TransportError
	switch {
	case errors.As(result.Failure, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.As(result.Failure, &transportErr):
		if transportErr.Kind == domain.TransportMissingCredential {
			return http.StatusBadRequest
		}
		return http.StatusBadGateway
	case domain.IsValidation(result.Failure):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// requestErrorMessage ボディの読み取りエラーを表示文言に変換
func requestErrorMessage(err error) string {
	if errors.Is(err, errInvalidBody) {
		return "Corpo da requisição inválido."
	}
	return domain.InputErrorMessage(err)
}

// sendError エラーレスポンスを送信
func (h *MenuHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, statusCode, AnalyzeResponse{
		Success: false,
		Items:   []domain.MenuItem{},
		Error:   message,
	})
}

// writeJSON 2スペースインデントのJSONで応答
func (h *MenuHandler) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(body)
}
