package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: session, validation, news, classifier, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNewsFetchFailed   = "NEWS_FETCH_FAILED"
	ErrCodeNewsQuotaExceeded = "NEWS_QUOTA_EXCEEDED"
	ErrCodeNewsUnauthorized  = "NEWS_UNAUTHORIZED"
	ErrCodeInvalidCategory   = "INVALID_CATEGORY"
	ErrCodeInvalidFeedback   = "INVALID_FEEDBACK"
	ErrCodeInvalidAnswers    = "INVALID_ANSWERS"
	ErrCodeClassifierFailed  = "CLASSIFIER_FAILED"
	ErrCodeStageMismatch     = "STAGE_MISMATCH"
	ErrCodeSessionNotFound   = "SESSION_NOT_FOUND"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewNewsFetchFailedError はニュース取得失敗エラーを生成する。
func NewNewsFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeNewsFetchFailed,
		Message:  fmt.Sprintf("Failed to retrieve news articles: %s", reason),
		Category: "news",
		Action:   "Please try again in a moment or pick another category.",
	}
}

// NewNewsQuotaExceededError はニュースAPIの利用上限超過エラーを生成する。
func NewNewsQuotaExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeNewsQuotaExceeded,
		Message:  "The news provider's request quota has been reached.",
		Category: "news",
		Action:   "Please try again later.",
	}
}

// NewNewsUnauthorizedError はニュースAPIのアクセスキーが拒否された場合のエラーを生成する。
func NewNewsUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeNewsUnauthorized,
		Message:  "The news provider rejected the access key.",
		Category: "news",
		Action:   "Check the MEDIASTACK_API_KEY setting.",
	}
}

// NewInvalidCategoryError は未知のカテゴリが指定された場合のエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("Unknown category: %s", category),
		Category: "validation",
		Action:   "Choose one of general, business, technology, entertainment, sports, science, health.",
	}
}

// NewInvalidFeedbackError は未知のフィードバックラベルが指定された場合のエラーを生成する。
func NewInvalidFeedbackError(label string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFeedback,
		Message:  fmt.Sprintf("Unknown feedback: %s", label),
		Category: "validation",
		Action:   "Use one of Too Easy, Just Right, Challenging, Too Difficult.",
	}
}

// NewInvalidAnswersError はレベル判定の回答が不完全または不正な場合のエラーを生成する。
func NewInvalidAnswersError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAnswers,
		Message:  fmt.Sprintf("Invalid assessment answers: %s", reason),
		Category: "validation",
		Action:   "Answer every sentence before submitting.",
	}
}

// NewClassifierFailedError は難易度判定の失敗エラーを生成する。
func NewClassifierFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeClassifierFailed,
		Message:  "An error occurred while estimating article difficulty.",
		Category: "classifier",
		Action:   "Please try again later.",
	}
}

// NewStageMismatchError は現在の段階で許可されない操作を行った場合のエラーを生成する。
func NewStageMismatchError(current, required Stage) *APIError {
	return &APIError{
		Code:     ErrCodeStageMismatch,
		Message:  fmt.Sprintf("This action requires stage %q, current stage is %q.", required, current),
		Category: "session",
		Action:   "Reload the page to continue from where you are.",
	}
}

// NewSessionNotFoundError はセッションが見つからない場合のエラーを生成する。
func NewSessionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  "Your session could not be found.",
		Category: "session",
		Action:   "Reload the page to start a new session.",
	}
}

// NewInvalidRequestError はリクエストボディやフォームを解釈できない場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Check the request and try again.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please try again in a moment.",
	}
}
