package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
)

func newTestContent(n int, subject string, stage model.Stage) *fakeContent {
	questions := make([]model.Question, n)
	for i := 0; i < n; i++ {
		questions[i] = questionFixture(int64(i+1), subject, stage, 1)
	}
	return &fakeContent{questions: questions}
}

func TestStartSessionSelectsRequestedCount(t *testing.T) {
	content := newTestContent(20, "mathematics", model.StageKS1)
	engine := NewEngine(content, &fakeProfiles{}, time.Hour)

	session, err := engine.StartSession(context.Background(), "p1", model.QuizConfig{
		Subject: "mathematics", Stage: model.StageKS1, QuestionCount: 5,
	})
	require.NoError(t, err)
	assert.Len(t, session.Questions, 5)
	assert.Equal(t, "p1", session.ProfileID)
}

func TestStartSessionFailsWithNoCandidates(t *testing.T) {
	content := &fakeContent{}
	engine := NewEngine(content, &fakeProfiles{}, time.Hour)

	_, err := engine.StartSession(context.Background(), "p1", model.QuizConfig{
		Subject: "mathematics", Stage: model.StageKS1, QuestionCount: 5,
	})
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindQuizEngine, ae.Kind)
}

func TestCurrentQuestionCachesShuffledOptions(t *testing.T) {
	content := newTestContent(10, "mathematics", model.StageKS1)
	engine := NewEngine(content, &fakeProfiles{}, time.Hour)

	session, err := engine.StartSession(context.Background(), "p1", model.QuizConfig{
		Subject: "mathematics", Stage: model.StageKS1, QuestionCount: 3,
	})
	require.NoError(t, err)

	first, err := engine.CurrentQuestion(session.ID)
	require.NoError(t, err)
	second, err := engine.CurrentQuestion(session.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Content.Options, second.Content.Options)
	assert.Nil(t, second.Tags)
}

func TestSubmitAnswerAdvancesCursorAndCompletes(t *testing.T) {
	content := newTestContent(10, "mathematics", model.StageKS1)
	profiles := &fakeProfiles{}
	engine := NewEngine(content, profiles, time.Hour)

	session, err := engine.StartSession(context.Background(), "p1", model.QuizConfig{
		Subject: "mathematics", Stage: model.StageKS1, QuestionCount: 2,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := engine.SubmitAnswer(context.Background(), session.ID, model.NewTextAnswer("4"), 5)
		require.NoError(t, err)
		assert.True(t, result.IsCorrect)
	}

	progress, err := engine.Progress(session.ID)
	require.NoError(t, err)
	assert.True(t, progress.Completed)
	assert.Equal(t, 2, progress.Answered)
	require.Len(t, profiles.recorded, 1)
	assert.Equal(t, 2, profiles.recorded[0].CorrectAnswers)
}

func TestSubmitAnswerOnCompletedSessionFails(t *testing.T) {
	content := newTestContent(5, "mathematics", model.StageKS1)
	engine := NewEngine(content, &fakeProfiles{}, time.Hour)

	session, err := engine.StartSession(context.Background(), "p1", model.QuizConfig{
		Subject: "mathematics", Stage: model.StageKS1, QuestionCount: 1,
	})
	require.NoError(t, err)

	_, err = engine.SubmitAnswer(context.Background(), session.ID, model.NewTextAnswer("4"), 5)
	require.NoError(t, err)

	_, err = engine.SubmitAnswer(context.Background(), session.ID, model.NewTextAnswer("4"), 5)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindQuizEngine, ae.Kind)
}

func TestPauseAndResume(t *testing.T) {
	content := newTestContent(5, "mathematics", model.StageKS1)
	engine := NewEngine(content, &fakeProfiles{}, time.Hour)

	session, err := engine.StartSession(context.Background(), "p1", model.QuizConfig{
		Subject: "mathematics", Stage: model.StageKS1, QuestionCount: 1,
	})
	require.NoError(t, err)

	require.NoError(t, engine.Pause(session.ID))
	progress, err := engine.Progress(session.ID)
	require.NoError(t, err)
	assert.True(t, progress.Paused)

	require.NoError(t, engine.Resume(session.ID))
	progress, err = engine.Progress(session.ID)
	require.NoError(t, err)
	assert.False(t, progress.Paused)

	// resuming an already-running session is a no-op, not an error.
	require.NoError(t, engine.Resume(session.ID))
}

func TestPauseOnCompletedSessionFails(t *testing.T) {
	content := newTestContent(5, "mathematics", model.StageKS1)
	engine := NewEngine(content, &fakeProfiles{}, time.Hour)

	session, err := engine.StartSession(context.Background(), "p1", model.QuizConfig{
		Subject: "mathematics", Stage: model.StageKS1, QuestionCount: 1,
	})
	require.NoError(t, err)
	_, err = engine.SubmitAnswer(context.Background(), session.ID, model.NewTextAnswer("4"), 5)
	require.NoError(t, err)

	err = engine.Pause(session.ID)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindQuizEngine, ae.Kind)
}

func TestUnknownSessionIDReturnsNotFound(t *testing.T) {
	engine := NewEngine(&fakeContent{}, &fakeProfiles{}, time.Hour)
	_, err := engine.CurrentQuestion(999)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, ae.Kind)
}

func TestEvictExpiredSessionsOnStartSession(t *testing.T) {
	content := newTestContent(5, "mathematics", model.StageKS1)
	engine := NewEngine(content, &fakeProfiles{}, time.Millisecond)

	stale, err := engine.StartSession(context.Background(), "p1", model.QuizConfig{
		Subject: "mathematics", Stage: model.StageKS1, QuestionCount: 1,
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = engine.StartSession(context.Background(), "p2", model.QuizConfig{
		Subject: "mathematics", Stage: model.StageKS1, QuestionCount: 1,
	})
	require.NoError(t, err)

	_, err = engine.CurrentQuestion(stale.ID)
	require.Error(t, err)
}
