package domain

import (
	"context"
	"time"
)

// RunOutcome 解析の結果区分
type RunOutcome string

const (
	OutcomeSuccess          RunOutcome = "success"
	OutcomeTransportFailure RunOutcome = "transport_failure"
	OutcomeParseFailure     RunOutcome = "parse_failure"
)

// AnalysisRun 解析1回分の実行記録（抽出結果そのものは含まない）
type AnalysisRun struct {
	ID           string
	Provider     string
	Model        string
	ImageCount   int
	ItemCount    int
	Outcome      RunOutcome
	ErrorMessage string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
	Cached       bool
	CreatedAt    time.Time
}

// IsValid 実行記録が有効かチェック
func (r *AnalysisRun) IsValid() bool {
	switch r.Outcome {
	case OutcomeSuccess, OutcomeTransportFailure, OutcomeParseFailure:
	default:
		return false
	}
	return r.ID != "" && r.ImageCount >= 0 && r.ItemCount >= 0
}

// AnalysisRunRepository 実行記録のリポジトリインターフェース
type AnalysisRunRepository interface {
	Create(ctx context.Context, run *AnalysisRun) error
	FindRecent(ctx context.Context, limit int) ([]*AnalysisRun, error)
}

// CacheRepository キャッシュリポジトリのインターフェース
type CacheRepository interface {
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
