// Package learner は学習者の1回の操作（開始、レベル判定、フィードバック、記事取得）を
// Level Store上の1回の同期処理として実行するサービス層を提供する。
package learner

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"

	"github.com/hitoshi/ouioui/internal/article"
	"github.com/hitoshi/ouioui/internal/assessment"
	"github.com/hitoshi/ouioui/internal/metrics"
	"github.com/hitoshi/ouioui/internal/model"
	"github.com/hitoshi/ouioui/internal/news"
	"github.com/hitoshi/ouioui/internal/progress"
	"github.com/hitoshi/ouioui/internal/repository"
)

// Service は学習者レコードに対する操作を提供する。
type Service struct {
	store   repository.LearnerSessionRepository
	bank    *assessment.Bank
	source  news.Source
	labeler article.Labeler
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	store repository.LearnerSessionRepository,
	bank *assessment.Bank,
	source news.Source,
	labeler article.Labeler,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		bank:    bank,
		source:  source,
		labeler: labeler,
		metrics: mc,
		logger:  logger,
	}
}

// QuestionView は表示用の判定問題。選択肢は学習者ごとに並べ替えて表示する。
type QuestionView struct {
	Index    int      `json:"index"`
	Sentence string   `json:"sentence"`
	Options  []Option `json:"options"`
}

// Option は表示用の選択肢。Valueは問題集内の元の選択肢インデックス。
type Option struct {
	Value int    `json:"value"`
	Text  string `json:"text"`
}

// AssessmentResult はレベル判定の結果。
type AssessmentResult struct {
	Session   *model.LearnerSession
	Points    int
	MaxPoints int
}

// FeedbackResult はフィードバック適用の結果。
type FeedbackResult struct {
	Session *model.LearnerSession
	Outcome progress.Outcome
}

// Curation はレベルに合った記事の取得結果。
type Curation struct {
	Session  *model.LearnerSession
	Category string
	Articles []model.Article
	// Fetched はニュース取得元から受け取った記事数。
	Fetched int
}

// Current は学習者レコードを返す。初回アクセス時は初期状態で作成される。
func (s *Service) Current(ctx context.Context, sessionID string) (*model.LearnerSession, error) {
	rec, err := s.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("学習者レコードの取得に失敗しました: %w", err)
	}
	return rec, nil
}

// Start はwelcomeからassessmentに進める。すでにassessmentの場合は何もしない。
func (s *Service) Start(ctx context.Context, sessionID string) (*model.LearnerSession, error) {
	rec, err := s.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch rec.Stage {
	case model.StageAssessment:
		return rec, nil
	case model.StageWelcome:
	default:
		return nil, model.NewStageMismatchError(rec.Stage, model.StageWelcome)
	}

	rec.Stage = model.StageAssessment
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("学習者レコードの保存に失敗しました: %w", err)
	}

	s.logger.Info("レベル判定を開始しました", slog.String("session_id", sessionID))
	return rec, nil
}

// Questions は表示用の判定問題を返す。
// 選択肢の並びはセッションIDから決まるため、同じ学習者には同じ順序で表示される。
func (s *Service) Questions(sessionID string) []QuestionView {
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	r := rand.New(rand.NewSource(int64(h.Sum64())))

	views := make([]QuestionView, len(s.bank.Questions))
	for i, q := range s.bank.Questions {
		opts := make([]Option, len(q.Options))
		for j, text := range q.Options {
			opts[j] = Option{Value: j, Text: text}
		}
		r.Shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
		views[i] = QuestionView{Index: i, Sentence: q.Sentence, Options: opts}
	}
	return views
}

// SubmitAssessment は回答を採点し、レベルを設定してreadingに進める。
func (s *Service) SubmitAssessment(ctx context.Context, sessionID string, answers []int) (*AssessmentResult, error) {
	rec, err := s.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.Stage != model.StageAssessment {
		return nil, model.NewStageMismatchError(rec.Stage, model.StageAssessment)
	}

	points, err := s.bank.Grade(answers)
	if err != nil {
		switch {
		case errors.Is(err, assessment.ErrIncompleteAnswers):
			return nil, model.NewInvalidAnswersError("every sentence needs an answer")
		case errors.Is(err, assessment.ErrInvalidOption):
			return nil, model.NewInvalidAnswersError("an answer is not one of the offered options")
		default:
			return nil, err
		}
	}

	rec.Level = assessment.ScoreToLevel(points)
	rec.FeedbackPoints = 0
	rec.Stage = model.StageReading
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("学習者レコードの保存に失敗しました: %w", err)
	}

	s.logger.Info("レベル判定が完了しました",
		slog.String("session_id", sessionID),
		slog.Int("points", points),
		slog.String("level", rec.Level.String()),
	)

	return &AssessmentResult{Session: rec, Points: points, MaxPoints: s.bank.MaxPoints()}, nil
}

// GiveFeedback はフィードバックを適用して保存する。
// 未知のラベルの場合はレコードを変更せずにエラーを返す。
func (s *Service) GiveFeedback(ctx context.Context, sessionID, label string) (*FeedbackResult, error) {
	fb, err := progress.ParseFeedback(label)
	if err != nil {
		return nil, model.NewInvalidFeedbackError(label)
	}

	rec, err := s.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.Stage != model.StageReading {
		return nil, model.NewStageMismatchError(rec.Stage, model.StageReading)
	}

	outcome, err := progress.ApplyFeedback(progress.Record{Level: rec.Level, FeedbackPoints: rec.FeedbackPoints}, fb)
	if err != nil {
		return nil, fmt.Errorf("フィードバックの適用に失敗しました: %w", err)
	}

	rec.Level = outcome.Level
	rec.FeedbackPoints = outcome.FeedbackPoints
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("学習者レコードの保存に失敗しました: %w", err)
	}

	s.metrics.RecordFeedback(string(fb))
	if dir := outcome.Direction(); dir != "none" {
		s.metrics.RecordLevelChange(dir)
		s.logger.Info("学習者のレベルが変わりました",
			slog.String("session_id", sessionID),
			slog.String("from", outcome.Previous.String()),
			slog.String("to", outcome.Level.String()),
			slog.String("feedback", string(fb)),
		)
	}

	return &FeedbackResult{Session: rec, Outcome: outcome}, nil
}

// Curate はニュースを取得し、難易度を判定して、現在のレベルに合う記事を返す。
// 取得や判定に失敗した場合は*model.APIErrorを返す（記事一覧は空）。
func (s *Service) Curate(ctx context.Context, sessionID, category string) (*Curation, error) {
	category, err := news.ParseCategory(category)
	if err != nil {
		return nil, err
	}

	rec, err := s.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.Stage != model.StageReading {
		return nil, model.NewStageMismatchError(rec.Stage, model.StageReading)
	}

	fetched, err := s.source.Fetch(ctx, category)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		s.logger.Error("ニュース記事の取得に失敗しました",
			slog.String("category", category),
			slog.String("error", err.Error()),
		)
		return nil, model.NewNewsFetchFailedError("unexpected error")
	}

	labeled, err := s.labeler.Label(ctx, fetched)
	if err != nil {
		s.logger.Error("記事の難易度判定に失敗しました",
			slog.String("category", category),
			slog.Int("articles", len(fetched)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewClassifierFailedError()
	}

	for _, a := range labeled {
		s.metrics.RecordImageCheck(a.ImageValid)
		if a.Level != "" {
			s.metrics.RecordArticleLabeled(a.Level.String())
		}
	}

	selected := article.Select(labeled, rec.Level)

	s.logger.Info("記事を選別しました",
		slog.String("session_id", sessionID),
		slog.String("category", category),
		slog.String("level", rec.Level.String()),
		slog.Int("fetched", len(fetched)),
		slog.Int("selected", len(selected)),
	)

	return &Curation{Session: rec, Category: category, Articles: selected, Fetched: len(fetched)}, nil
}
