package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/ouioui/internal/cefr"
	"github.com/hitoshi/ouioui/internal/model"
)

const learnerSessionsTable = "learner_sessions"

var learnerSessionColumns = []string{
	"id", "level", "feedback_points", "stage", "expires_at", "created_at", "updated_at",
}

// psql はPostgreSQL用のプレースホルダ（$1, $2, ...）を使うクエリビルダ。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// learnerSessionRow はlearner_sessionsテーブルの1行。
type learnerSessionRow struct {
	ID             string    `db:"id"`
	Level          string    `db:"level"`
	FeedbackPoints float64   `db:"feedback_points"`
	Stage          string    `db:"stage"`
	ExpiresAt      time.Time `db:"expires_at"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r learnerSessionRow) toModel() (*model.LearnerSession, error) {
	level, err := cefr.ParseLevel(r.Level)
	if err != nil {
		return nil, fmt.Errorf("learner session %s: %w", r.ID, err)
	}
	return &model.LearnerSession{
		ID:             r.ID,
		Level:          level,
		FeedbackPoints: r.FeedbackPoints,
		Stage:          model.Stage(r.Stage),
		ExpiresAt:      r.ExpiresAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

// PostgresLearnerSessionRepo はPostgreSQLを使用した学習者レコードのリポジトリ。
type PostgresLearnerSessionRepo struct {
	db     *sqlx.DB
	maxAge time.Duration
	now    func() time.Time
}

// NewPostgresLearnerSessionRepo はPostgresLearnerSessionRepoを生成する。
// maxAgeはセッションCookieの有効期間と同じ値を指定する。
func NewPostgresLearnerSessionRepo(db *sql.DB, maxAge time.Duration) *PostgresLearnerSessionRepo {
	var x *sqlx.DB
	if db != nil {
		x = sqlx.NewDb(db, "postgres")
	}
	return &PostgresLearnerSessionRepo{db: x, maxAge: maxAge, now: time.Now}
}

// GetOrCreate は有効なレコードを返し、なければ初期状態で作成する。
// 期限切れの行の削除、作成、取得を1トランザクションで行う。
func (r *PostgresLearnerSessionRepo) GetOrCreate(ctx context.Context, id string) (*model.LearnerSession, error) {
	now := r.now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 期限切れのレコードは引き継がない
	delQuery, delArgs, err := buildDeleteExpiredByID(id, now)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, delQuery, delArgs...); err != nil {
		return nil, fmt.Errorf("failed to delete expired learner session: %w", err)
	}

	insQuery, insArgs, err := buildInsertIfAbsent(model.NewLearnerSession(id, now, r.maxAge))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, insQuery, insArgs...); err != nil {
		return nil, fmt.Errorf("failed to create learner session: %w", err)
	}

	selQuery, selArgs, err := psql.Select(learnerSessionColumns...).
		From(learnerSessionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	var row learnerSessionRow
	if err := tx.GetContext(ctx, &row, selQuery, selArgs...); err != nil {
		return nil, fmt.Errorf("failed to find learner session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return row.toModel()
}

// Save はレコードを置き換える。
func (r *PostgresLearnerSessionRepo) Save(ctx context.Context, session *model.LearnerSession) error {
	if session == nil {
		return errors.New("learner session is nil")
	}
	if !session.Level.Valid() {
		return fmt.Errorf("learner session %s: %w", session.ID, cefr.ErrUnknownLevel)
	}

	now := r.now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(r.maxAge)
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}

	query, args, err := buildUpsert(session)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save learner session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのレコードを削除する。
func (r *PostgresLearnerSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := psql.Delete(learnerSessionsTable).
		Where(sq.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired learner sessions: %w", err)
	}
	return result.RowsAffected()
}

func buildDeleteExpiredByID(id string, now time.Time) (string, []interface{}, error) {
	query, args, err := psql.Delete(learnerSessionsTable).
		Where(sq.Eq{"id": id}).
		Where(sq.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build delete: %w", err)
	}
	return query, args, nil
}

func buildInsertIfAbsent(s *model.LearnerSession) (string, []interface{}, error) {
	query, args, err := psql.Insert(learnerSessionsTable).
		Columns(learnerSessionColumns...).
		Values(s.ID, string(s.Level), s.FeedbackPoints, string(s.Stage), s.ExpiresAt, s.CreatedAt, s.UpdatedAt).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build insert: %w", err)
	}
	return query, args, nil
}

func buildUpsert(s *model.LearnerSession) (string, []interface{}, error) {
	query, args, err := psql.Insert(learnerSessionsTable).
		Columns(learnerSessionColumns...).
		Values(s.ID, string(s.Level), s.FeedbackPoints, string(s.Stage), s.ExpiresAt, s.CreatedAt, s.UpdatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			level = EXCLUDED.level,
			feedback_points = EXCLUDED.feedback_points,
			stage = EXCLUDED.stage,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build upsert: %w", err)
	}
	return query, args, nil
}

// compile-time interface check
var _ LearnerSessionRepository = (*PostgresLearnerSessionRepo)(nil)
