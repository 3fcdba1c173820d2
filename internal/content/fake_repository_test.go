package content

import (
	"context"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
	"github.com/DDT-TDD/quizdd-engine/internal/store/contentstore"
)

// fakeRepository is an in-memory stand-in for contentstore.Repository,
// enough to exercise the Seeder and Loader without a real database.
type fakeRepository struct {
	subjects  map[string]model.Subject
	nextID    int64
	questions map[int64]model.Question
}

var _ contentstore.Repository = (*fakeRepository)(nil)

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		subjects:  make(map[string]model.Subject),
		questions: make(map[int64]model.Question),
	}
}

func (f *fakeRepository) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	out := make([]model.Subject, 0, len(f.subjects))
	for _, s := range f.subjects {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeRepository) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	q, ok := f.questions[id]
	if !ok {
		return model.Question{}, apperr.NotFound("question")
	}
	return q, nil
}

func (f *fakeRepository) ListQuestions(ctx context.Context, filter contentstore.Filter) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.questions {
		if q.SubjectID == f.subjects[filter.Subject].ID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeRepository) CountQuestions(ctx context.Context, filter contentstore.Filter) (int, error) {
	questions, err := f.ListQuestions(ctx, filter)
	return len(questions), err
}

func (f *fakeRepository) InsertQuestion(ctx context.Context, q model.Question) (int64, error) {
	f.nextID++
	q.ID = f.nextID
	f.questions[q.ID] = q
	return q.ID, nil
}

func (f *fakeRepository) UpdateQuestion(ctx context.Context, q model.Question) error {
	f.questions[q.ID] = q
	return nil
}

func (f *fakeRepository) DeleteQuestion(ctx context.Context, id int64) error {
	delete(f.questions, id)
	return nil
}

func (f *fakeRepository) Statistics(ctx context.Context) (contentstore.Statistics, error) {
	stats := contentstore.Statistics{BySubject: make(map[string]int)}
	byID := make(map[int64]string, len(f.subjects))
	for name, s := range f.subjects {
		byID[s.ID] = name
	}
	for _, q := range f.questions {
		stats.TotalQuestions++
		stats.BySubject[byID[q.SubjectID]]++
	}
	return stats, nil
}

func (f *fakeRepository) UpsertSubject(ctx context.Context, subject model.Subject) (int64, error) {
	existing, ok := f.subjects[subject.Name]
	if ok {
		subject.ID = existing.ID
	} else {
		f.nextID++
		subject.ID = f.nextID
	}
	f.subjects[subject.Name] = subject
	return subject.ID, nil
}

func (f *fakeRepository) DeleteQuestionsBySubject(ctx context.Context, subjectName string) error {
	subjectID := f.subjects[subjectName].ID
	for id, q := range f.questions {
		if q.SubjectID == subjectID {
			delete(f.questions, id)
		}
	}
	return nil
}

// InstallPackage mimics the real Store's atomicity: it stages every
// change against a scratch copy of the map state and only swaps it in
// if every subject/question succeeds, so a mid-pack failure leaves the
// fake's visible state untouched, the same guarantee the real
// transaction-backed Store gives the Loader.
func (f *fakeRepository) InstallPackage(ctx context.Context, subjects []model.Subject, questions []contentstore.PackQuestionInsert) error {
	scratch := &fakeRepository{
		subjects:  make(map[string]model.Subject, len(f.subjects)),
		questions: make(map[int64]model.Question, len(f.questions)),
		nextID:    f.nextID,
	}
	for name, s := range f.subjects {
		scratch.subjects[name] = s
	}
	for id, q := range f.questions {
		scratch.questions[id] = q
	}

	subjectIDs := make(map[string]int64, len(subjects))
	for _, subject := range subjects {
		id, err := scratch.UpsertSubject(ctx, subject)
		if err != nil {
			return err
		}
		subjectIDs[subject.Name] = id
	}
	for _, pq := range questions {
		subjectID, ok := subjectIDs[pq.SubjectName]
		if !ok {
			return apperr.ContentManagement("question references unknown subject \""+pq.SubjectName+"\"", nil)
		}
		q := pq.Question
		q.SubjectID = subjectID
		if _, err := scratch.InsertQuestion(ctx, q); err != nil {
			return err
		}
	}

	f.subjects = scratch.subjects
	f.questions = scratch.questions
	f.nextID = scratch.nextID
	return nil
}
