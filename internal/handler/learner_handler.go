package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ouioui/internal/learner"
	"github.com/hitoshi/ouioui/internal/middleware"
	"github.com/hitoshi/ouioui/internal/model"
	"github.com/hitoshi/ouioui/internal/news"
	"github.com/hitoshi/ouioui/internal/progress"
)

// LearnerServiceInterface は学習者ハンドラーが必要とするサービスインターフェース。
// learner.Serviceが実装する。
type LearnerServiceInterface interface {
	Current(ctx context.Context, sessionID string) (*model.LearnerSession, error)
	Start(ctx context.Context, sessionID string) (*model.LearnerSession, error)
	Questions(sessionID string) []learner.QuestionView
	SubmitAssessment(ctx context.Context, sessionID string, answers []int) (*learner.AssessmentResult, error)
	GiveFeedback(ctx context.Context, sessionID, label string) (*learner.FeedbackResult, error)
	Curate(ctx context.Context, sessionID, category string) (*learner.Curation, error)
}

// LearnerHandler は学習者向けJSON APIのHTTPハンドラー。
type LearnerHandler struct {
	service LearnerServiceInterface
}

// NewLearnerHandler はLearnerHandlerを生成する。
func NewLearnerHandler(service LearnerServiceInterface) *LearnerHandler {
	return &LearnerHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

// sessionResponse は学習者の状態のレスポンス。
type sessionResponse struct {
	Level          string  `json:"level"`
	FeedbackPoints float64 `json:"feedback_points"`
	Stage          string  `json:"stage"`
}

// articleResponse は表示対象の記事のレスポンス。
type articleResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Category    string `json:"category"`
	Level       string `json:"level"`
}

// articlesResponse は記事一覧のレスポンス。
type articlesResponse struct {
	Session  sessionResponse   `json:"session"`
	Category string            `json:"category"`
	Fetched  int               `json:"fetched"`
	Articles []articleResponse `json:"articles"`
}

// questionsResponse は判定問題一覧のレスポンス。
type questionsResponse struct {
	Questions []learner.QuestionView `json:"questions"`
}

// assessmentRequest は判定の回答リクエストのボディ。
// answersは問題順に、選択肢のvalue（問題集内のインデックス）を並べる。
type assessmentRequest struct {
	Answers []int `json:"answers"`
}

// assessmentResponse は判定結果のレスポンス。
type assessmentResponse struct {
	Session   sessionResponse `json:"session"`
	Points    int             `json:"points"`
	MaxPoints int             `json:"max_points"`
}

// feedbackRequest はフィードバックリクエストのボディ。
type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

// feedbackResponse はフィードバック適用結果のレスポンス。
type feedbackResponse struct {
	Session       sessionResponse `json:"session"`
	PreviousLevel string          `json:"previous_level"`
	Direction     string          `json:"direction"`
}

// optionsResponse はUIの選択肢（カテゴリとフィードバック）のレスポンス。
type optionsResponse struct {
	Categories      []string `json:"categories"`
	DefaultCategory string   `json:"default_category"`
	Feedbacks       []string `json:"feedbacks"`
}

func toSessionResponse(s *model.LearnerSession) sessionResponse {
	return sessionResponse{
		Level:          s.Level.String(),
		FeedbackPoints: s.FeedbackPoints,
		Stage:          string(s.Stage),
	}
}

func toArticleResponses(articles []model.Article) []articleResponse {
	out := make([]articleResponse, len(articles))
	for i, a := range articles {
		out[i] = articleResponse{
			Title:       a.Title,
			Description: a.Description,
			Image:       a.Image,
			URL:         a.URL,
			Source:      a.Source,
			Category:    a.Category,
			Level:       a.Level.String(),
		}
	}
	return out
}

func feedbackLabels() []string {
	fbs := progress.Feedbacks()
	out := make([]string, len(fbs))
	for i, f := range fbs {
		out[i] = string(f)
	}
	return out
}

// --- ハンドラー ---

// Me は現在の学習者の状態を返す。
// GET /api/me
func (h *LearnerHandler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrError(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Current(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(rec))
}

// Options はカテゴリとフィードバックの選択肢を返す。
// GET /api/options
func (h *LearnerHandler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, optionsResponse{
		Categories:      news.Categories(),
		DefaultCategory: news.DefaultCategory,
		Feedbacks:       feedbackLabels(),
	})
}

// Start はレベル判定を開始する。
// POST /api/start
func (h *LearnerHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrError(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Start(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(rec))
}

// Questions は判定問題を返す。
// GET /api/assessment
func (h *LearnerHandler) Questions(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrError(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, questionsResponse{Questions: h.service.Questions(sessionID)})
}

// SubmitAssessment は判定の回答を採点し、レベルを設定する。
// POST /api/assessment
func (h *LearnerHandler) SubmitAssessment(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrError(w, r)
	if !ok {
		return
	}

	var req assessmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("request body must be JSON with an answers array"))
		return
	}

	result, err := h.service.SubmitAssessment(r.Context(), sessionID, req.Answers)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, assessmentResponse{
		Session:   toSessionResponse(result.Session),
		Points:    result.Points,
		MaxPoints: result.MaxPoints,
	})
}

// Articles は現在のレベルに合った記事一覧を返す。
// GET /api/articles?category=business
func (h *LearnerHandler) Articles(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrError(w, r)
	if !ok {
		return
	}

	cur, err := h.service.Curate(r.Context(), sessionID, r.URL.Query().Get("category"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, articlesResponse{
		Session:  toSessionResponse(cur.Session),
		Category: cur.Category,
		Fetched:  cur.Fetched,
		Articles: toArticleResponses(cur.Articles),
	})
}

// Feedback は記事へのフィードバックを適用する。
// POST /api/feedback
func (h *LearnerHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrError(w, r)
	if !ok {
		return
	}

	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("request body must be JSON with a feedback field"))
		return
	}

	result, err := h.service.GiveFeedback(r.Context(), sessionID, req.Feedback)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{
		Session:       toSessionResponse(result.Session),
		PreviousLevel: result.Outcome.Previous.String(),
		Direction:     result.Outcome.Direction(),
	})
}

// --- 共通処理 ---

// maxRequestBodySize はJSONリクエストボディの上限。
const maxRequestBodySize = 64 << 10

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sessionIDOrError はコンテキストからセッションIDを取り出す。
// SessionMiddlewareを通過していない場合は500を書き込みfalseを返す。
func sessionIDOrError(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		slog.Error("session ID missing from request context", slog.String("path", r.URL.Path))
		middleware.WriteInternalServerError(w)
		return "", false
	}
	return sessionID, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
