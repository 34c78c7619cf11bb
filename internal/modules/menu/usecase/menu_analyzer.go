package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"menu-analyzer-app/internal/modules/menu/domain"
)

// ErrRunLogDisabled 実行記録の保存先が設定されていない
var ErrRunLogDisabled = errors.New("analysis run log is disabled")

// maxLoggedCompletion パース失敗時にログへ残すモデル出力の文字数
const maxLoggedCompletion = 500

// AnalyzerOptions 解析リクエストのパラメータ
type AnalyzerOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MaxImages   int
	CacheTTL    time.Duration
}

// MenuAnalyzer メニュー画像解析のユースケース
//
// 可変状態を持たないため、複数のgoroutineから同時に Analyze を呼んでよい。
type MenuAnalyzer struct {
	modelRepo   domain.ModelRepository
	credentials domain.CredentialProvider
	cacheRepo   domain.CacheRepository
	runRepo     domain.AnalysisRunRepository
	options     AnalyzerOptions
}

// NewMenuAnalyzer 新しいMenuAnalyzerを作成（cacheRepo, runRepo はnil可）
func NewMenuAnalyzer(
	modelRepo domain.ModelRepository,
	credentials domain.CredentialProvider,
	cacheRepo domain.CacheRepository,
	runRepo domain.AnalysisRunRepository,
	options AnalyzerOptions,
) *MenuAnalyzer {
	return &MenuAnalyzer{
		modelRepo:   modelRepo,
		credentials: credentials,
		cacheRepo:   cacheRepo,
		runRepo:     runRepo,
		options:     options,
	}
}

// ValidateSubmission 解析を依頼する前の入力検証
func (uc *MenuAnalyzer) ValidateSubmission(images []domain.ImageInput) error {
	if len(images) == 0 {
		return &domain.ValidationError{Field: "images", Reason: "at least one image is required"}
	}
	if uc.options.MaxImages > 0 && len(images) > uc.options.MaxImages {
		return &domain.ValidationError{Field: "images", Reason: fmt.Sprintf("at most %d images are allowed", uc.options.MaxImages), Limit: int64(uc.options.MaxImages)}
	}
	if uc.credentials == nil {
		return &domain.ValidationError{Field: "api_key", Reason: "api key is not configured"}
	}
	if _, ok := uc.credentials.Credential(); !ok {
		return &domain.ValidationError{Field: "api_key", Reason: "api key is not configured"}
	}
	return nil
}

// Analyze 画像をまとめて1回のリクエストで解析する
//
// 通信失敗とパース失敗は結果の Error に格納して返す。それ以外（panic）は呼び出し元に伝播する。
func (uc *MenuAnalyzer) Analyze(ctx context.Context, images []domain.ImageInput) *domain.MenuAnalysisResult {
	start := time.Now()
	cacheKey := uc.generateCacheKey(images)

	// キャッシュチェック
	if result := uc.lookupCache(ctx, cacheKey); result != nil {
		uc.recordRun(ctx, images, result, time.Since(start))
		return result
	}

	req := &domain.CompletionRequest{
		SystemPrompt: systemPromptMenu,
		UserPrompt:   userPromptMenu,
		Images:       images,
		Temperature:  uc.options.Temperature,
		MaxTokens:    uc.options.MaxTokens,
	}

	completion, err := uc.modelRepo.Complete(ctx, req)
	if err != nil {
		result := domain.NewFailureResult(uc.toTransportError(err))
		slog.Warn("Menu analysis request failed",
			"provider", uc.modelRepo.ProviderName(),
			"images", len(images),
			"error", err,
		)
		uc.recordRun(ctx, images, result, time.Since(start))
		return result
	}

	text := ""
	if completion != nil {
		text = completion.Text
	}

	items, err := ParseMenuItems(text)
	if err != nil {
		result := domain.NewFailureResult(err)
		if completion != nil {
			result.InputTokens = completion.InputTokens
			result.OutputTokens = completion.OutputTokens
			result.Model = completion.Model
		}
		attrs := []any{"provider", uc.modelRepo.ProviderName(), "error", err}
		var parseErr *domain.ParseError
		if errors.As(err, &parseErr) {
			attrs = append(attrs, "completion", parseErr.RawPreview(maxLoggedCompletion))
		}
		slog.Warn("Menu analysis response could not be parsed", attrs...)
		uc.recordRun(ctx, images, result, time.Since(start))
		return result
	}

	result := domain.NewSuccessResult(items, completion)
	uc.storeCache(ctx, cacheKey, items)

	slog.Info("Menu analysis completed",
		"provider", uc.modelRepo.ProviderName(),
		"images", len(images),
		"items", len(items),
		"tokens", result.TotalTokens(),
		"duration", time.Since(start),
	)
	uc.recordRun(ctx, images, result, time.Since(start))
	return result
}

// RecentRuns 直近の実行記録を取得
func (uc *MenuAnalyzer) RecentRuns(ctx context.Context, limit int) ([]*domain.AnalysisRun, error) {
	if uc.runRepo == nil {
		return nil, ErrRunLogDisabled
	}
	runs, err := uc.runRepo.FindRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find analysis runs: %w", err)
	}
	return runs, nil
}

// GetProviderName プロバイダー名を取得
func (uc *MenuAnalyzer) GetProviderName() string {
	return uc.modelRepo.ProviderName()
}

// toTransportError モデル呼び出しのエラーをTransportErrorにそろえる
func (uc *MenuAnalyzer) toTransportError(err error) *domain.TransportError {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return transportErr
	}
	return &domain.TransportError{
		Provider: uc.modelRepo.ProviderName(),
		Kind:     domain.TransportNetwork,
		Err:      err,
	}
}

// lookupCache キャッシュ済みの解析結果を返す（無ければnil）
func (uc *MenuAnalyzer) lookupCache(ctx context.Context, key string) *domain.MenuAnalysisResult {
	if uc.cacheRepo == nil {
		return nil
	}

	cached, err := uc.cacheRepo.Get(ctx, key)
	if err != nil || len(cached) == 0 {
		return nil
	}

	var items []domain.MenuItem
	if err := json.Unmarshal(cached, &items); err != nil {
		slog.Warn("Discarding broken cache entry", "key", key, "error", err)
		_ = uc.cacheRepo.Delete(ctx, key)
		return nil
	}

	result := domain.NewSuccessResult(items, nil)
	result.Cached = true
	return result
}

// storeCache 成功した解析結果のみキャッシュする
func (uc *MenuAnalyzer) storeCache(ctx context.Context, key string, items []domain.MenuItem) {
	if uc.cacheRepo == nil {
		return
	}

	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := uc.cacheRepo.Set(ctx, key, data, uc.options.CacheTTL); err != nil {
		slog.Warn("Failed to store analysis cache", "key", key, "error", err)
	}
}

// recordRun 実行記録を保存（失敗しても解析結果には影響させない）
func (uc *MenuAnalyzer) recordRun(ctx context.Context, images []domain.ImageInput, result *domain.MenuAnalysisResult, duration time.Duration) {
	if uc.runRepo == nil {
		return
	}

	run := &domain.AnalysisRun{
		ID:           uuid.NewString(),
		Provider:     uc.modelRepo.ProviderName(),
		Model:        result.Model,
		ImageCount:   len(images),
		ItemCount:    len(result.Items),
		Outcome:      outcomeOf(result),
		ErrorMessage: result.Error,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		Duration:     duration,
		Cached:       result.Cached,
		CreatedAt:    time.Now(),
	}
	if run.Model == "" {
		run.Model = uc.options.Model
	}

	if err := uc.runRepo.Create(ctx, run); err != nil {
		slog.Warn("Failed to record analysis run", "run_id", run.ID, "error", err)
	}
}

func outcomeOf(result *domain.MenuAnalysisResult) domain.RunOutcome {
	var parseErr *domain.ParseError
	switch {
	case !result.Failed():
		return domain.OutcomeSuccess
	case errors.As(result.Failure, &parseErr):
		return domain.OutcomeParseFailure
	default:
		return domain.OutcomeTransportFailure
	}
}

// generateCacheKey 画像の並びとモデルからキャッシュキーを生成
func (uc *MenuAnalyzer) generateCacheKey(images []domain.ImageInput) string {
	hash := sha256.New()
	fmt.Fprintf(hash, "%s\n%s\n", uc.modelRepo.ProviderName(), uc.options.Model)
	for _, img := range images {
		fmt.Fprintf(hash, "%s\n%s\n", img.Kind(), img.Value())
	}
	return fmt.Sprintf("menu:analysis:%s", hex.EncodeToString(hash.Sum(nil)))
}
