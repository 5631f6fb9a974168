// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/ouioui/internal/model"
)

// LearnerSessionRepository は学習者レコード（レベルとフィードバックポイント）の
// 永続化インターフェース。レコードはセッションCookieのIDをキーとし、
// Cookieの有効期限とともに破棄される。
type LearnerSessionRepository interface {
	// GetOrCreate は有効なレコードを返す。存在しないか期限切れの場合は
	// 初期状態（A1、0ポイント、welcome）のレコードを作成して返す。
	GetOrCreate(ctx context.Context, id string) (*model.LearnerSession, error)

	// Save はレコードを置き換える。ExpiresAtとUpdatedAtはSave時点から更新される。
	Save(ctx context.Context, session *model.LearnerSession) error

	// DeleteExpired は指定時刻の時点で期限切れのレコードを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
