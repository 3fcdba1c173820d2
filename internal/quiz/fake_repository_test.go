package quiz

import (
	"context"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
	"github.com/DDT-TDD/quizdd-engine/internal/store/contentstore"
	"github.com/DDT-TDD/quizdd-engine/internal/store/profilestore"
)

// fakeContent is an in-memory stand-in for contentstore.Repository: just
// enough filtering by subject/stage/difficulty to exercise candidate
// selection without a real database.
type fakeContent struct {
	questions []model.Question
}

var _ contentstore.Repository = (*fakeContent)(nil)

func (f *fakeContent) ListSubjects(ctx context.Context) ([]model.Subject, error) { return nil, nil }

func (f *fakeContent) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	for _, q := range f.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return model.Question{}, apperr.NotFound("question")
}

func (f *fakeContent) ListQuestions(ctx context.Context, filter contentstore.Filter) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.questions {
		if q.SubjectName != filter.Subject {
			continue
		}
		if filter.Stage != nil && q.Stage != *filter.Stage {
			continue
		}
		if filter.DifficultyLow > 0 && filter.DifficultyHigh > 0 {
			if q.Difficulty < filter.DifficultyLow || q.Difficulty > filter.DifficultyHigh {
				continue
			}
		}
		out = append(out, q)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeContent) CountQuestions(ctx context.Context, filter contentstore.Filter) (int, error) {
	rows, err := f.ListQuestions(ctx, filter)
	return len(rows), err
}

func (f *fakeContent) InsertQuestion(ctx context.Context, q model.Question) (int64, error) {
	q.ID = int64(len(f.questions) + 1)
	f.questions = append(f.questions, q)
	return q.ID, nil
}

func (f *fakeContent) UpdateQuestion(ctx context.Context, q model.Question) error { return nil }

func (f *fakeContent) DeleteQuestion(ctx context.Context, id int64) error { return nil }

func (f *fakeContent) Statistics(ctx context.Context) (contentstore.Statistics, error) {
	return contentstore.Statistics{}, nil
}

func (f *fakeContent) UpsertSubject(ctx context.Context, subject model.Subject) (int64, error) {
	return 1, nil
}

func (f *fakeContent) DeleteQuestionsBySubject(ctx context.Context, subjectName string) error {
	return nil
}

func (f *fakeContent) InstallPackage(ctx context.Context, subjects []model.Subject, questions []contentstore.PackQuestionInsert) error {
	for _, pq := range questions {
		if _, err := f.InsertQuestion(ctx, pq.Question); err != nil {
			return err
		}
	}
	return nil
}

// fakeProfiles is an in-memory stand-in for profilestore.Repository
// that only records the last RecordResult call, which is all the Quiz
// Engine's completion path needs to exercise.
type fakeProfiles struct {
	recorded []profilestore.ResultDelta
}

var _ profilestore.Repository = (*fakeProfiles)(nil)

func (f *fakeProfiles) Create(ctx context.Context, name, avatar string) (model.Profile, error) {
	return model.Profile{}, nil
}

func (f *fakeProfiles) List(ctx context.Context) ([]model.Profile, error) { return nil, nil }

func (f *fakeProfiles) Update(ctx context.Context, id string, patch profilestore.ProfilePatch) (model.Profile, error) {
	return model.Profile{}, nil
}

func (f *fakeProfiles) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeProfiles) GetProgress(ctx context.Context, profileID string) (profilestore.ProgressSummary, error) {
	return profilestore.ProgressSummary{}, nil
}

func (f *fakeProfiles) RecordResult(ctx context.Context, profileID string, delta profilestore.ResultDelta) error {
	f.recorded = append(f.recorded, delta)
	return nil
}

func questionFixture(id int64, subject string, stage model.Stage, difficulty int) model.Question {
	return model.Question{
		ID:          id,
		SubjectName: subject,
		Stage:       stage,
		Kind:        model.KindMultipleChoice,
		Difficulty:  difficulty,
		Content: model.QuestionContent{
			Text:    "2 + 2 = ?",
			Options: []string{"3", "4", "5", "6"},
		},
		CorrectAnswer: model.NewTextAnswer("4"),
	}
}
