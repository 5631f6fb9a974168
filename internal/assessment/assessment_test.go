package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/ouioui/internal/cefr"
)

func TestScoreToLevel_BinEdges(t *testing.T) {
	cases := []struct {
		points int
		want   cefr.Level
	}{
		{0, cefr.A1},
		{2, cefr.A1},
		{3, cefr.A2},
		{4, cefr.A2},
		{5, cefr.B1},
		{6, cefr.B1},
		{7, cefr.B2},
		{8, cefr.B2},
		{9, cefr.C1},
		{10, cefr.C1},
		{11, cefr.C2},
		{12, cefr.C2},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ScoreToLevel(tc.points), "points=%d", tc.points)
	}
}

func TestDefaultBank_SixQuestionsTwelvePoints(t *testing.T) {
	b, err := DefaultBank()
	require.NoError(t, err)
	require.Len(t, b.Questions, 6)
	assert.Equal(t, 12, b.MaxPoints())

	for i, q := range b.Questions {
		assert.Len(t, q.Options, 3, "question %d", i)
		assert.Equal(t, cefr.Levels()[i], q.Level)
	}
}

func TestGrade_AllCorrectIsC2(t *testing.T) {
	b, err := DefaultBank()
	require.NoError(t, err)

	points, err := b.Grade([]int{0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 12, points)
	assert.Equal(t, cefr.C2, ScoreToLevel(points))
}

func TestGrade_AllWrongIsA1(t *testing.T) {
	b, err := DefaultBank()
	require.NoError(t, err)

	points, err := b.Grade([]int{1, 2, 1, 2, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0, points)
	assert.Equal(t, cefr.A1, ScoreToLevel(points))
}

func TestGrade_ThreeCorrectIsB1(t *testing.T) {
	b, err := DefaultBank()
	require.NoError(t, err)

	points, err := b.Grade([]int{0, 0, 0, 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, 6, points)
	assert.Equal(t, cefr.B1, ScoreToLevel(points))
}

func TestGrade_RejectsIncompleteAnswers(t *testing.T) {
	b, err := DefaultBank()
	require.NoError(t, err)

	_, err = b.Grade([]int{0, 0})
	assert.ErrorIs(t, err, ErrIncompleteAnswers)
}

func TestGrade_RejectsOutOfRangeOption(t *testing.T) {
	b, err := DefaultBank()
	require.NoError(t, err)

	_, err = b.Grade([]int{0, 0, 0, 0, 0, 3})
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = b.Grade([]int{-1, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestParseBank_Validation(t *testing.T) {
	_, err := ParseBank([]byte("questions: []"))
	assert.Error(t, err)

	_, err = ParseBank([]byte(`
questions:
  - sentence: "Bonjour."
    correct: 2
    options: ["a", "b"]
`))
	assert.Error(t, err)

	_, err = ParseBank([]byte(`
questions:
  - sentence: "Bonjour."
    level: Z1
    correct: 0
    options: ["a", "b"]
`))
	assert.ErrorIs(t, err, cefr.ErrUnknownLevel)

	_, err = ParseBank([]byte("questions: [unclosed"))
	assert.Error(t, err)
}
