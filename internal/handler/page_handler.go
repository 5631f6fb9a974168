package handler

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/ouioui/internal/cefr"
	"github.com/hitoshi/ouioui/internal/learner"
	"github.com/hitoshi/ouioui/internal/middleware"
	"github.com/hitoshi/ouioui/internal/model"
	"github.com/hitoshi/ouioui/internal/news"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// 画面の種類
const (
	pageWelcome    = "welcome"
	pageAssessment = "assessment"
	pageReading    = "reading"
)

// notices はリダイレクト後に表示するメッセージ。クエリの値をそのまま表示しないよう固定文言に限る。
var notices = map[string]string{
	"assessed":   "Assessment complete. Here are articles at your level.",
	"level_up":   "Great progress! Your level went up.",
	"level_down": "Your level went down a step. These articles should feel more comfortable.",
	"recorded":   "Thanks, your feedback was recorded.",
}

// pageData はテンプレートに渡す値。
type pageData struct {
	Page       string
	CSRFToken  string
	Session    sessionResponse
	Levels     []cefr.Level
	Categories []string
	Category   string
	Questions  []learner.QuestionView
	Articles   []model.Article
	Feedbacks  []string
	Notice     string
	Error      *model.APIError
}

// PageHandler はブラウザ向けHTML画面のHTTPハンドラー。
// 状態を変更するPOSTはすべて303 See Otherで / にリダイレクトし、
// 画面の再描画はブラウザのGETに任せる。
type PageHandler struct {
	service LearnerServiceInterface
	logger  *slog.Logger
	// readingLimiter は記事一覧を表示する（ニュース取得が走る）場合にだけ適用する。
	readingLimiter func(next http.Handler) http.Handler
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(service LearnerServiceInterface, logger *slog.Logger) *PageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{service: service, logger: logger}
}

// WithReadingLimiter は記事一覧の表示にだけ適用するミドルウェアを設定する。
// ようこそ画面と判定画面の表示には適用しない。
func (h *PageHandler) WithReadingLimiter(mw func(next http.Handler) http.Handler) *PageHandler {
	h.readingLimiter = mw
	return h
}

// Index は学習者の段階に応じて、ようこそ画面・判定画面・記事一覧のいずれかを表示する。
// GET /?category=business&notice=level_up
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrError(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Current(r.Context(), sessionID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := h.newPageData(r, rec)
	data.Notice = notices[r.URL.Query().Get("notice")]

	switch rec.Stage {
	case model.StageWelcome:
		data.Page = pageWelcome
	case model.StageAssessment:
		data.Page = pageAssessment
		data.Questions = h.service.Questions(sessionID)
	default:
		data.Page = pageReading
		var reading http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.renderReading(w, r, sessionID, data)
		})
		if h.readingLimiter != nil {
			reading = h.readingLimiter(reading)
		}
		reading.ServeHTTP(w, r)
		return
	}

	h.render(w, http.StatusOK, data)
}

// renderReading は記事を取得・選別して記事一覧を表示する。
func (h *PageHandler) renderReading(w http.ResponseWriter, r *http.Request, sessionID string, data pageData) {
	status := http.StatusOK
	cur, err := h.service.Curate(r.Context(), sessionID, r.URL.Query().Get("category"))
	if err != nil {
		// 取得・判定の失敗は画面内にエラーを表示し、記事一覧は空にする
		data.Error = h.toAPIError(err)
		status = middleware.StatusCodeFor(data.Error)
	} else {
		data.Session = toSessionResponse(cur.Session)
		data.Category = cur.Category
		data.Articles = cur.Articles
	}
	h.render(w, status, data)
}

// Start はレベル判定を開始する。
// POST /start
func (h *PageHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrError(w, r)
	if !ok {
		return
	}

	if _, err := h.service.Start(r.Context(), sessionID); err != nil {
		h.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SubmitAssessment はフォームの回答（q0〜qN）を採点する。
// POST /assessment
func (h *PageHandler) SubmitAssessment(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrError(w, r)
	if !ok {
		return
	}

	questions := h.service.Questions(sessionID)
	answers, apiErr := parseAnswers(r, len(questions))
	if apiErr == nil {
		if _, err := h.service.SubmitAssessment(r.Context(), sessionID, answers); err != nil {
			apiErr = h.toAPIError(err)
		}
	}

	if apiErr != nil {
		rec, err := h.service.Current(r.Context(), sessionID)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		data := h.newPageData(r, rec)
		data.Page = pageAssessment
		if rec.Stage != model.StageAssessment {
			data.Page = pageForStage(rec.Stage)
		}
		data.Questions = questions
		data.Error = apiErr
		h.render(w, middleware.StatusCodeFor(apiErr), data)
		return
	}

	http.Redirect(w, r, "/?notice=assessed", http.StatusSeeOther)
}

// Feedback は記事へのフィードバックを適用し、同じカテゴリの記事一覧に戻る。
// POST /feedback
func (h *PageHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDOrError(w, r)
	if !ok {
		return
	}

	result, err := h.service.GiveFeedback(r.Context(), sessionID, r.PostFormValue("feedback"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	q := url.Values{}
	if category, err := news.ParseCategory(r.PostFormValue("category")); err == nil {
		q.Set("category", category)
	}
	switch result.Outcome.Direction() {
	case "up":
		q.Set("notice", "level_up")
	case "down":
		q.Set("notice", "level_down")
	default:
		q.Set("notice", "recorded")
	}

	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

// parseAnswers はフォームのq0〜q{n-1}を選択肢インデックスとして読み取る。
func parseAnswers(r *http.Request, n int) ([]int, *model.APIError) {
	answers := make([]int, n)
	for i := 0; i < n; i++ {
		raw := r.PostFormValue("q" + strconv.Itoa(i))
		if raw == "" {
			return nil, model.NewInvalidAnswersError("every sentence needs an answer")
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, model.NewInvalidAnswersError("an answer is not one of the offered options")
		}
		answers[i] = v
	}
	return answers, nil
}

func pageForStage(stage model.Stage) string {
	switch stage {
	case model.StageWelcome:
		return pageWelcome
	case model.StageAssessment:
		return pageAssessment
	default:
		return pageReading
	}
}

func (h *PageHandler) newPageData(r *http.Request, rec *model.LearnerSession) pageData {
	category, err := news.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		category = news.DefaultCategory
	}
	return pageData{
		CSRFToken:  middleware.CSRFTokenFromContext(r.Context()),
		Session:    toSessionResponse(rec),
		Levels:     cefr.Levels(),
		Categories: news.Categories(),
		Category:   category,
		Feedbacks:  feedbackLabels(),
	}
}

// toAPIError はサービス層のエラーを画面表示用のAPIErrorに変換する。
func (h *PageHandler) toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	h.logger.Error("internal server error", slog.String("error", err.Error()))
	return model.NewInternalError()
}

// renderError は学習者の現在の画面にエラーを重ねて表示する。
// 学習者レコード自体が取得できない場合はプレーンテキストの500を返す。
func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := h.toAPIError(err)

	sessionID, _ := middleware.SessionIDFromContext(r.Context())
	rec, recErr := h.service.Current(r.Context(), sessionID)
	if recErr != nil {
		h.logger.Error("failed to load learner session", slog.String("error", recErr.Error()))
		http.Error(w, apiErr.Message, middleware.StatusCodeFor(apiErr))
		return
	}

	data := h.newPageData(r, rec)
	data.Page = pageForStage(rec.Stage)
	if data.Page == pageAssessment {
		data.Questions = h.service.Questions(sessionID)
	}
	data.Error = apiErr
	h.render(w, middleware.StatusCodeFor(apiErr), data)
}

func (h *PageHandler) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("failed to render page",
			slog.String("page", data.Page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
