// Package quiz is the Quiz Engine (spec.md §4.8): it turns a QuizConfig
// into a candidate question set, runs the session state machine, grades
// submitted answers and scores the finished session. Sessions live only
// in memory; nothing here is persisted except the final call into the
// Profile Store on completion.
package quiz

import (
	"context"
	"sync"
	"time"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
	"github.com/DDT-TDD/quizdd-engine/internal/store/contentstore"
	"github.com/DDT-TDD/quizdd-engine/internal/store/profilestore"
)

// defaultSessionTTL is how long an abandoned session is kept around
// before evict_expired reclaims it (Decision D2).
const defaultSessionTTL = 4 * time.Hour

// Engine holds every in-flight quiz session. It is safe for concurrent
// use; one Engine is shared across every profile's sessions the way the
// automation scheduler shares one run map across every job.
type Engine struct {
	mu       sync.Mutex
	sessions map[uint64]*model.QuizSession
	nextID   uint64

	content  contentstore.Repository
	profiles profilestore.Repository

	rng        *lcg
	sessionTTL time.Duration
}

// NewEngine builds an Engine. sessionTTL <= 0 falls back to a 4 hour
// default. The PRNG is seeded from the OS clock once, at construction.
func NewEngine(content contentstore.Repository, profiles profilestore.Repository, sessionTTL time.Duration) *Engine {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &Engine{
		sessions:   make(map[uint64]*model.QuizSession),
		content:    content,
		profiles:   profiles,
		rng:        newLCG(time.Now().UnixNano()),
		sessionTTL: sessionTTL,
	}
}

// Progress is the `progress` operation's return shape (spec.md §4.8.3).
type Progress struct {
	Cursor             int
	Total              int
	Answered           int
	Completed          bool
	Paused             bool
	TimeElapsedSeconds int
}

// StartSession selects a candidate set for cfg and opens a new session
// for profileID. It evicts expired sessions first (Decision D2).
func (e *Engine) StartSession(ctx context.Context, profileID string, cfg model.QuizConfig) (*model.QuizSession, error) {
	questions, err := e.candidates(ctx, cfg)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.evictExpiredLocked()

	e.nextID++
	session := &model.QuizSession{
		ID:        e.nextID,
		ProfileID: profileID,
		Config:    cfg,
		Questions: questions,
		StartedAt: time.Now().UTC(),
	}
	e.sessions[session.ID] = session
	return session, nil
}

func (e *Engine) evictExpiredLocked() {
	now := time.Now()
	for id, s := range e.sessions {
		if now.Sub(s.StartedAt) > e.sessionTTL {
			delete(e.sessions, id)
		}
	}
}

func (e *Engine) lookupLocked(id uint64) (*model.QuizSession, error) {
	s, ok := e.sessions[id]
	if !ok {
		return nil, apperr.NotFound("quiz session")
	}
	return s, nil
}

// CurrentQuestion returns a learner-facing copy of the question at the
// session's cursor: tags stripped, and MultipleChoice/DragDrop content
// randomised-then-cached per cursor position (Decision D1).
func (e *Engine) CurrentQuestion(id uint64) (model.Question, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.lookupLocked(id)
	if err != nil {
		return model.Question{}, err
	}
	if session.IsCompleted() {
		return model.Question{}, apperr.QuizEngine("session is already completed")
	}
	return e.sanitizeForDisplay(session, session.Cursor), nil
}

// Progress reports the session's current standing.
func (e *Engine) Progress(id uint64) (Progress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.lookupLocked(id)
	if err != nil {
		return Progress{}, err
	}

	elapsed := session.AccumulatedTimeSeconds
	return Progress{
		Cursor:             session.Cursor,
		Total:              len(session.Questions),
		Answered:           len(session.Answers),
		Completed:          session.IsCompleted(),
		Paused:             session.Paused,
		TimeElapsedSeconds: elapsed,
	}, nil
}

// Pause marks a session paused. Pausing a completed session is an error.
func (e *Engine) Pause(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.lookupLocked(id)
	if err != nil {
		return err
	}
	if session.IsCompleted() {
		return apperr.QuizEngine("cannot pause a completed session")
	}
	if session.Paused {
		return nil
	}
	now := time.Now().UTC()
	session.Paused = true
	session.PauseStart = &now
	return nil
}

// Resume clears a session's paused flag. Resuming a session that is not
// paused is a no-op, not an error.
func (e *Engine) Resume(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.lookupLocked(id)
	if err != nil {
		return err
	}
	if !session.Paused {
		return nil
	}
	session.Paused = false
	session.PauseStart = nil
	return nil
}

// SubmitAnswer grades the submitted answer against the question at the
// session's cursor, appends the result, and advances the cursor. When
// this was the last question, it finalises the session and records the
// outcome with the Profile Store.
func (e *Engine) SubmitAnswer(ctx context.Context, id uint64, answer model.Answer, timeTakenSeconds int) (model.AnswerResult, error) {
	e.mu.Lock()

	session, err := e.lookupLocked(id)
	if err != nil {
		e.mu.Unlock()
		return model.AnswerResult{}, err
	}
	if session.IsCompleted() {
		e.mu.Unlock()
		return model.AnswerResult{}, apperr.QuizEngine("session is already completed")
	}

	question := session.Questions[session.Cursor]
	result, verr := validateAnswer(question, answer)
	if verr != nil {
		e.mu.Unlock()
		return model.AnswerResult{}, verr
	}
	taken := timeTakenSeconds
	result.TimeTakenSeconds = &taken

	session.Answers = append(session.Answers, result)
	session.AccumulatedTimeSeconds += timeTakenSeconds
	session.Cursor++

	var (
		shouldRecord bool
		delta        profilestore.ResultDelta
	)
	if session.Cursor >= len(session.Questions) {
		now := time.Now().UTC()
		session.CompletedAt = &now
		shouldRecord = true
		delta = profilestore.ResultDelta{
			Subject:           session.Config.Subject,
			Stage:             session.Config.Stage,
			QuestionsAnswered: len(session.Answers),
			CorrectAnswers:    countCorrect(session.Answers),
			TimeSpentSeconds:  session.AccumulatedTimeSeconds,
		}
	}
	profileID := session.ProfileID
	e.mu.Unlock()

	if shouldRecord && e.profiles != nil {
		if err := e.profiles.RecordResult(ctx, profileID, delta); err != nil {
			return result, err
		}
	}
	return result, nil
}

func countCorrect(answers []model.AnswerResult) int {
	n := 0
	for _, a := range answers {
		if a.IsCorrect {
			n++
		}
	}
	return n
}

// Finalise computes the final score summary for a completed session.
// It is safe to call repeatedly; it reads the session without mutating
// it.
func (e *Engine) Finalise(id uint64) (FinaliseResult, error) {
	e.mu.Lock()
	session, err := e.lookupLocked(id)
	e.mu.Unlock()
	if err != nil {
		return FinaliseResult{}, err
	}
	if !session.IsCompleted() {
		return FinaliseResult{}, apperr.QuizEngine("session is not yet completed")
	}
	return finalise(session), nil
}
