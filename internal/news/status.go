package news

import (
	"fmt"
	"net/http"

	"github.com/hitoshi/ouioui/internal/model"
)

// statusClass はニュースAPIのHTTPステータスコードの分類。
type statusClass int

const (
	// statusOK は取得成功（200）。
	statusOK statusClass = iota
	// statusUnauthorized はアクセスキーが拒否された（401/403）。
	statusUnauthorized
	// statusQuota は利用上限に達した（429）。
	statusQuota
	// statusUpstream は取得元の障害（5xx）。
	statusUpstream
	// statusUnknown はその他のステータスコード。
	statusUnknown
)

// classifyStatus はHTTPステータスコードを分類する。
func classifyStatus(statusCode int) statusClass {
	switch {
	case statusCode == http.StatusOK:
		return statusOK
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return statusUnauthorized
	case statusCode == http.StatusTooManyRequests:
		return statusQuota
	case statusCode >= 500:
		return statusUpstream
	default:
		return statusUnknown
	}
}

// reason はメトリクスのラベルに使う分類名を返す。
func (c statusClass) reason() string {
	switch c {
	case statusOK:
		return "ok"
	case statusUnauthorized:
		return "unauthorized"
	case statusQuota:
		return "quota"
	case statusUpstream:
		return "upstream"
	default:
		return "unexpected_status"
	}
}

// statusError は200以外のステータスコードをユーザー向けエラーに変換する。
func statusError(statusCode int) *model.APIError {
	switch classifyStatus(statusCode) {
	case statusUnauthorized:
		return model.NewNewsUnauthorizedError()
	case statusQuota:
		return model.NewNewsQuotaExceededError()
	default:
		return model.NewNewsFetchFailedError(fmt.Sprintf("news provider returned status %d", statusCode))
	}
}
