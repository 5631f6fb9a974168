// Package cleanup は期限切れの学習者レコードを定期的に削除するジョブを提供する。
// PostgreSQLとメモリの両方のLevel Storeに対して同じジョブを使う。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はクリーンアップの実行間隔。
const DefaultInterval = 15 * time.Minute

// Purger は期限切れレコードを削除するインターフェース。
type Purger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupJob は期限切れの学習者レコードの削除ジョブ。
// 冪等な削除処理のため、何度実行してもよい。
type CleanupJob struct {
	store    Purger
	logger   *slog.Logger
	now      func() time.Time
	Interval time.Duration // 実行間隔（デフォルト: 15分）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(store Purger, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		store:    store,
		logger:   logger,
		now:      time.Now,
		Interval: DefaultInterval,
	}
}

// Run は期限切れの学習者レコードを1回削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.store.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("学習者レコードのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("学習者レコードのクリーンアップに失敗: %w", err)
	}

	j.logger.Info("学習者レコードのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はctxがキャンセルされるまでInterval間隔でRunを実行する（ブロッキング）。
// 起動直後に1回実行する。個々の実行の失敗はログに記録して継続する。
func (j *CleanupJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	j.logger.Info("クリーンアップジョブを開始しました", slog.Duration("interval", interval))

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
