package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	_ "github.com/go-sql-driver/mysql"

	"menu-analyzer-app/internal/config"
	"menu-analyzer-app/internal/modules/menu/domain"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// AnalysisRun BUNモデル
type AnalysisRun struct {
	bun.BaseModel `bun:"table:analysis_runs"`

	ID           string    `bun:"id,pk,type:varchar(36)"`
	Provider     string    `bun:"provider,notnull,type:varchar(50)"`
	Model        string    `bun:"model,notnull,type:varchar(100)"`
	ImageCount   int       `bun:"image_count,notnull"`
	ItemCount    int       `bun:"item_count,notnull,default:0"`
	Outcome      string    `bun:"outcome,notnull,type:varchar(32)"`
	ErrorMessage string    `bun:"error_message,type:text"`
	InputTokens  int       `bun:"input_tokens,notnull,default:0"`
	OutputTokens int       `bun:"output_tokens,notnull,default:0"`
	DurationMS   int64     `bun:"duration_ms,notnull,default:0"`
	Cached       bool      `bun:"cached,notnull,default:false"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// BunAnalysisRunRepository 解析実行記録のBUN実装
type BunAnalysisRunRepository struct {
	db *bun.DB
}

// NewBunAnalysisRunRepository 新しいBunAnalysisRunRepositoryを作成
func NewBunAnalysisRunRepository(cfg *config.MySQLConfig) (*BunAnalysisRunRepository, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	sqldb, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := bun.NewDB(sqldb, mysqldialect.New())

	// 接続確認
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &BunAnalysisRunRepository{db: db}
	if err := repo.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return repo, nil
}

// NewBunAnalysisRunRepositoryWithDB DBインスタンスから作成（テスト用）
func NewBunAnalysisRunRepositoryWithDB(db *bun.DB) *BunAnalysisRunRepository {
	return &BunAnalysisRunRepository{db: db}
}

// CreateTable テーブルが無ければ作成
func (r *BunAnalysisRunRepository) CreateTable(ctx context.Context) error {
	if _, err := r.db.NewCreateTable().Model((*AnalysisRun)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create analysis_runs table: %w", err)
	}
	return nil
}

// Create 実行記録を保存
func (r *BunAnalysisRunRepository) Create(ctx context.Context, run *domain.AnalysisRun) error {
	if !run.IsValid() {
		return fmt.Errorf("invalid analysis run: %s", run.ID)
	}

	model := toModel(run)
	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}
	return nil
}

// FindRecent 新しい順に実行記録を取得
func (r *BunAnalysisRunRepository) FindRecent(ctx context.Context, limit int) ([]*domain.AnalysisRun, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	var models []AnalysisRun
	err := r.db.NewSelect().
		Model(&models).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find analysis runs: %w", err)
	}

	runs := make([]*domain.AnalysisRun, len(models))
	for i := range models {
		runs[i] = toEntity(&models[i])
	}
	return runs, nil
}

// Close DB接続を閉じる
func (r *BunAnalysisRunRepository) Close() error {
	return r.db.Close()
}

func toModel(run *domain.AnalysisRun) *AnalysisRun {
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &AnalysisRun{
		ID:           run.ID,
		Provider:     run.Provider,
		Model:        run.Model,
		ImageCount:   run.ImageCount,
		ItemCount:    run.ItemCount,
		Outcome:      string(run.Outcome),
		ErrorMessage: run.ErrorMessage,
		InputTokens:  run.InputTokens,
		OutputTokens: run.OutputTokens,
		DurationMS:   run.Duration.Milliseconds(),
		Cached:       run.Cached,
		CreatedAt:    createdAt,
	}
}

func toEntity(model *AnalysisRun) *domain.AnalysisRun {
	return &domain.AnalysisRun{
		ID:           model.ID,
		Provider:     model.Provider,
		Model:        model.Model,
		ImageCount:   model.ImageCount,
		ItemCount:    model.ItemCount,
		Outcome:      domain.RunOutcome(model.Outcome),
		ErrorMessage: model.ErrorMessage,
		InputTokens:  model.InputTokens,
		OutputTokens: model.OutputTokens,
		Duration:     time.Duration(model.DurationMS) * time.Millisecond,
		Cached:       model.Cached,
		CreatedAt:    model.CreatedAt,
	}
}
