package di

import (
	"fmt"
	"log/slog"

	"menu-analyzer-app/internal/config"
	"menu-analyzer-app/internal/modules/menu/domain"
	menuHandler "menu-analyzer-app/internal/modules/menu/presentation/handler"
	menuUsecase "menu-analyzer-app/internal/modules/menu/usecase"
	sharedAI "menu-analyzer-app/internal/modules/shared/infrastructure/ai"
	sharedCache "menu-analyzer-app/internal/modules/shared/infrastructure/cache"
	sharedCredential "menu-analyzer-app/internal/modules/shared/infrastructure/credential"
	sharedDB "menu-analyzer-app/internal/modules/shared/infrastructure/database"
	httpHandler "menu-analyzer-app/internal/presentation/http/handler"
)

// Container DIコンテナ
type Container struct {
	// Shared Infrastructure
	modelRepo   domain.ModelRepository
	credentials *sharedCredential.Chain
	cacheRepo   *sharedCache.RedisRepository
	runRepo     *sharedDB.BunAnalysisRunRepository

	// Menu Module
	normalizer        *menuUsecase.ImageNormalizer
	menuAnalyzer      *menuUsecase.MenuAnalyzer
	menuHandler       *menuHandler.MenuHandler
	credentialHandler *menuHandler.CredentialHandler

	healthHandler *httpHandler.HealthHandler
}

// NewContainer 新しいContainerを作成
//
// Redis/MySQLは有効化されていても接続できなければ警告を出して無効のまま続行する。
func NewContainer(cfg *config.Config) (*Container, error) {
	container := &Container{}

	// Shared Infrastructure: Credential
	modelCfg := cfg.ActiveModel()
	container.credentials = sharedCredential.NewChain(modelCfg.APIKey, sharedCredential.NewMemoryStore())

	// Shared Infrastructure: Model Repository
	switch cfg.Provider {
	case config.ProviderOpenAI:
		container.modelRepo = sharedAI.NewOpenAIRepository(&modelCfg, container.credentials)
	case config.ProviderAnthropic:
		container.modelRepo = sharedAI.NewClaudeRepository(&modelCfg, container.credentials)
	default:
		return nil, fmt.Errorf("failed to initialize model repository: unknown provider %q", cfg.Provider)
	}

	// Shared Infrastructure: Cache Repository
	var cacheRepo domain.CacheRepository
	if cfg.Redis.Enabled {
		repo, err := sharedCache.NewRedisRepository(&cfg.Redis)
		if err != nil {
			slog.Warn("Cache disabled", "error", err)
		} else {
			container.cacheRepo = repo
			cacheRepo = repo
		}
	}

	// Shared Infrastructure: Analysis Run Repository
	var runRepo domain.AnalysisRunRepository
	if cfg.MySQL.Enabled {
		repo, err := sharedDB.NewBunAnalysisRunRepository(&cfg.MySQL)
		if err != nil {
			slog.Warn("Run log disabled", "error", err)
		} else {
			container.runRepo = repo
			runRepo = repo
		}
	}

	// Menu Module: UseCase
	container.normalizer = menuUsecase.NewImageNormalizer(cfg.Menu.MaxImageBytes)
	container.menuAnalyzer = menuUsecase.NewMenuAnalyzer(
		container.modelRepo,
		container.credentials,
		cacheRepo,
		runRepo,
		menuUsecase.AnalyzerOptions{
			Model:       modelCfg.Model,
			Temperature: modelCfg.Temperature,
			MaxTokens:   modelCfg.MaxTokens,
			MaxImages:   cfg.Menu.MaxImages,
			CacheTTL:    cfg.Redis.TTL(),
		},
	)

	// Menu Module: Handler
	// JSONのdata URIはbase64で4/3倍になる
	maxBodyBytes := cfg.Menu.MaxImageBytes * int64(cfg.Menu.MaxImages) * 4 / 3
	container.menuHandler = menuHandler.NewMenuHandler(container.menuAnalyzer, container.normalizer, maxBodyBytes)
	container.credentialHandler = menuHandler.NewCredentialHandler(container.credentials)

	container.healthHandler = httpHandler.NewHealthHandler(
		container.modelRepo.ProviderName(),
		container.cacheRepo != nil,
		container.runRepo != nil,
	)

	slog.Info("Container initialized",
		"provider", container.modelRepo.ProviderName(),
		"model", modelCfg.Model,
		"cache", container.cacheRepo != nil,
		"run_log", container.runRepo != nil,
	)

	return container, nil
}

// MenuAnalyzer メニュー解析ユースケースを取得
func (c *Container) MenuAnalyzer() *menuUsecase.MenuAnalyzer {
	return c.menuAnalyzer
}

// ImageNormalizer 入力画像の正規化を取得
func (c *Container) ImageNormalizer() *menuUsecase.ImageNormalizer {
	return c.normalizer
}

// MenuHandler メニュー解析APIハンドラーを取得
func (c *Container) MenuHandler() *menuHandler.MenuHandler {
	return c.menuHandler
}

// CredentialHandler APIキー管理ハンドラーを取得
func (c *Container) CredentialHandler() *menuHandler.CredentialHandler {
	return c.credentialHandler
}

// HealthHandler ヘルスチェックハンドラーを取得
func (c *Container) HealthHandler() *httpHandler.HealthHandler {
	return c.healthHandler
}

// Close リソースをクローズ（2回目以降は何もしない）
func (c *Container) Close() error {
	if c.cacheRepo != nil {
		if err := c.cacheRepo.Close(); err != nil {
			return fmt.Errorf("failed to close cache repository: %w", err)
		}
		c.cacheRepo = nil
	}

	if c.runRepo != nil {
		if err := c.runRepo.Close(); err != nil {
			return fmt.Errorf("failed to close run repository: %w", err)
		}
		c.runRepo = nil
	}

	return nil
}
