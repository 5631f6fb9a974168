// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/hitoshi/ouioui/internal/cefr"
)

// Stage は学習者セッションの進行段階を表す。
type Stage string

const (
	// StageWelcome は開始ボタンを押す前の段階。
	StageWelcome Stage = "welcome"
	// StageAssessment は初回レベル判定の回答中の段階。
	StageAssessment Stage = "assessment"
	// StageReading はレベルに合った記事を読んでいる段階。
	StageReading Stage = "reading"
)

// Valid は定義済みの段階かどうかを判定する。
func (s Stage) Valid() bool {
	switch s {
	case StageWelcome, StageAssessment, StageReading:
		return true
	default:
		return false
	}
}

// LearnerSession はブラウザセッション単位の学習者レコード。
// Level と FeedbackPoints がレベル調整の状態を保持する。
// レベルが変化した直後のFeedbackPointsは常に0である。
// セッションCookieの有効期限とともに破棄され、セッションをまたいで保持されない。
type LearnerSession struct {
	ID             string
	Level          cefr.Level
	FeedbackPoints float64
	Stage          Stage
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewLearnerSession は初期状態（A1、0ポイント、welcome）の学習者レコードを生成する。
func NewLearnerSession(id string, now time.Time, maxAge time.Duration) *LearnerSession {
	return &LearnerSession{
		ID:             id,
		Level:          cefr.A1,
		FeedbackPoints: 0,
		Stage:          StageWelcome,
		ExpiresAt:      now.Add(maxAge),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Expired は指定時刻の時点でセッションが期限切れかどうかを判定する。
func (s *LearnerSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
