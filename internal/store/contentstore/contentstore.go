// Package contentstore is the Content Store (spec.md §4.5): subjects,
// questions, and their assets.
package contentstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/jmoiron/sqlx"
	"github.com/tidwall/gjson"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/database"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
)

// Repository is the narrow interface the Quiz Engine, Mix Manager, and
// Content Loader depend on; Store is its only implementation.
type Repository interface {
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	GetQuestion(ctx context.Context, id int64) (model.Question, error)
	ListQuestions(ctx context.Context, f Filter) ([]model.Question, error)
	CountQuestions(ctx context.Context, f Filter) (int, error)
	InsertQuestion(ctx context.Context, q model.Question) (int64, error)
	UpdateQuestion(ctx context.Context, q model.Question) error
	DeleteQuestion(ctx context.Context, id int64) error
	Statistics(ctx context.Context) (Statistics, error)
	UpsertSubject(ctx context.Context, subject model.Subject) (int64, error)
	DeleteQuestionsBySubject(ctx context.Context, subjectName string) error
	InstallPackage(ctx context.Context, subjects []model.Subject, questions []PackQuestionInsert) error
}

// PackQuestionInsert pairs a question with the name of the subject it
// belongs to, letting InstallPackage resolve subject ids against the
// subjects upserted earlier in the same call rather than a separately
// committed one.
type PackQuestionInsert struct {
	SubjectName string
	Question    model.Question
}

var _ Repository = (*Store)(nil)

// Store is the SQLite-backed Content Store.
type Store struct {
	pool *database.Pool
}

// New builds a Store bound to pool.
func New(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

// Filter narrows list_questions/available_count, per spec.md §4.5/§4.7.
type Filter struct {
	Subject        string
	Stage          *model.Stage
	DifficultyLow  int
	DifficultyHigh int
	AllowedKinds   []model.QuestionKind
	Limit          int
}

// Statistics is the Content Store's `statistics` operation result.
type Statistics struct {
	TotalQuestions int
	BySubject      map[string]int
}

// ListSubjects returns every configured subject category.
func (s *Store) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	var subjects []model.Subject
	err := s.pool.Execute(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &subjects,
			`SELECT id, name, display_name, icon_path, color_scheme, description FROM subjects ORDER BY name`)
	})
	if err != nil {
		return nil, apperr.Store(err)
	}
	return subjects, nil
}

// questionRow is the on-disk shape of a Question row before its JSON
// columns are decoded.
type questionRow struct {
	ID            int64  `db:"id"`
	SubjectID     int64  `db:"subject_id"`
	SubjectName   string `db:"subject_name"`
	Stage         string `db:"key_stage"`
	Kind          string `db:"question_type"`
	ContentJSON   string `db:"content"`
	AnswerJSON    string `db:"correct_answer"`
	Difficulty    int    `db:"difficulty_level"`
	TagsJSON      string `db:"tags"`
	CreatedAtUnix string `db:"created_at"`
}

const questionSelectColumns = `
	q.id, q.subject_id, s.name AS subject_name, q.key_stage, q.question_type,
	q.content, q.correct_answer, q.difficulty_level, q.tags, q.created_at`

func decodeQuestionRow(row questionRow) (model.Question, error) {
	q := model.Question{
		ID:          row.ID,
		SubjectID:   row.SubjectID,
		SubjectName: row.SubjectName,
		Stage:       model.Stage(row.Stage),
		Kind:        model.QuestionKind(row.Kind),
		Difficulty:  row.Difficulty,
	}
	if err := json.Unmarshal([]byte(row.ContentJSON), &q.Content); err != nil {
		return model.Question{}, apperr.Serialisation("decoding question content", err)
	}
	if err := json.Unmarshal([]byte(row.AnswerJSON), &q.CorrectAnswer); err != nil {
		return model.Question{}, apperr.Serialisation("decoding correct answer", err)
	}
	if row.TagsJSON != "" {
		if err := json.Unmarshal([]byte(row.TagsJSON), &q.Tags); err != nil {
			return model.Question{}, apperr.Serialisation("decoding question tags", err)
		}
	}
	return q, nil
}

// GetQuestion loads a single question by id, including its assets.
func (s *Store) GetQuestion(ctx context.Context, id int64) (model.Question, error) {
	var question model.Question
	err := s.pool.Execute(ctx, func(db *sqlx.DB) error {
		var row questionRow
		query := `SELECT ` + questionSelectColumns + ` FROM questions q JOIN subjects s ON s.id = q.subject_id WHERE q.id = ?`
		if err := db.GetContext(ctx, &row, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("question")
			}
			return apperr.Store(err)
		}
		decoded, err := decodeQuestionRow(row)
		if err != nil {
			return err
		}
		assets, err := loadAssets(ctx, db, id)
		if err != nil {
			return err
		}
		decoded.Assets = assets
		question = decoded
		return nil
	})
	if err != nil {
		return model.Question{}, err
	}
	return question, nil
}

func loadAssets(ctx context.Context, db sqlx.QueryerContext, questionID int64) ([]model.Asset, error) {
	var assets []model.Asset
	if err := sqlx.SelectContext(ctx, db, &assets,
		`SELECT id, question_id, asset_type, file_path, alt_text, file_size, checksum, created_at
		 FROM assets WHERE question_id = ?`, questionID); err != nil {
		return nil, apperr.Store(err)
	}
	return assets, nil
}

// ListQuestions returns a random sample matching f; the caller (Quiz
// Engine) does its own higher-level balancing on top of this sample.
func (s *Store) ListQuestions(ctx context.Context, f Filter) ([]model.Question, error) {
	var out []model.Question
	err := s.pool.Execute(ctx, func(db *sqlx.DB) error {
		query, args := buildListQuery(f)
		var rows []questionRow
		if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
			return apperr.Store(err)
		}
		for _, row := range rows {
			q, err := decodeQuestionRow(row)
			if err != nil {
				return err
			}
			out = append(out, q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// The store's "random function" is approximated here in Go rather than
	// SQL's ORDER BY RANDOM(), since the kind/tag filters above already ran
	// server-side; shuffling the already-narrow result set client-side
	// avoids a full-table sort for large content packs.
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func buildListQuery(f Filter) (string, []any) {
	query := `SELECT ` + questionSelectColumns + ` FROM questions q JOIN subjects s ON s.id = q.subject_id WHERE s.name = ?`
	args := []any{f.Subject}
	if f.Stage != nil {
		query += ` AND q.key_stage = ?`
		args = append(args, string(*f.Stage))
	}
	if f.DifficultyLow > 0 && f.DifficultyHigh > 0 {
		query += ` AND q.difficulty_level BETWEEN ? AND ?`
		args = append(args, f.DifficultyLow, f.DifficultyHigh)
	}
	if len(f.AllowedKinds) > 0 {
		query += ` AND q.question_type IN (?` + repeatPlaceholders(len(f.AllowedKinds)-1) + `)`
		for _, k := range f.AllowedKinds {
			args = append(args, string(k))
		}
	}
	return query, args
}

func repeatPlaceholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

// CountQuestions counts distinct questions matching f, used by the Mix
// Manager's available_count (spec.md §4.7). It reads the stored `content`
// JSON column with gjson rather than a full struct unmarshal, since only a
// shape/kind check is needed here, never the full question body.
func (s *Store) CountQuestions(ctx context.Context, f Filter) (int, error) {
	var count int
	err := s.pool.Execute(ctx, func(db *sqlx.DB) error {
		query := `SELECT q.content FROM questions q JOIN subjects s ON s.id = q.subject_id WHERE s.name = ?`
		args := []any{f.Subject}
		if f.Stage != nil {
			query += ` AND q.key_stage = ?`
			args = append(args, string(*f.Stage))
		}
		if f.DifficultyLow > 0 && f.DifficultyHigh > 0 {
			query += ` AND q.difficulty_level BETWEEN ? AND ?`
			args = append(args, f.DifficultyLow, f.DifficultyHigh)
		}
		if len(f.AllowedKinds) > 0 {
			query += ` AND q.question_type IN (?` + repeatPlaceholders(len(f.AllowedKinds)-1) + `)`
			for _, k := range f.AllowedKinds {
				args = append(args, string(k))
			}
		}
		var contents []string
		if err := db.SelectContext(ctx, &contents, query, args...); err != nil {
			return apperr.Store(err)
		}
		for _, c := range contents {
			if gjson.Valid(c) {
				count++
			}
		}
		return nil
	})
	return count, err
}

// InsertQuestion validates and inserts a question plus its assets under a
// single transaction.
func (s *Store) InsertQuestion(ctx context.Context, q model.Question) (int64, error) {
	if err := validateQuestion(q); err != nil {
		return 0, err
	}

	var id int64
	err := s.pool.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		id, err = insertQuestionTx(ctx, tx, q.SubjectID, q)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// insertQuestionTx inserts a question plus its assets against ext, which
// may be either a plain connection or an open transaction. subjectID
// overrides q.SubjectID, so callers resolving subject ids inline (e.g.
// InstallPackage) don't need to mutate q first.
func insertQuestionTx(ctx context.Context, ext sqlx.ExtContext, subjectID int64, q model.Question) (int64, error) {
	contentJSON, err := json.Marshal(q.Content)
	if err != nil {
		return 0, apperr.Serialisation("encoding question content", err)
	}
	answerJSON, err := json.Marshal(q.CorrectAnswer)
	if err != nil {
		return 0, apperr.Serialisation("encoding correct answer", err)
	}
	tagsJSON, err := json.Marshal(q.Tags)
	if err != nil {
		return 0, apperr.Serialisation("encoding question tags", err)
	}

	res, err := ext.ExecContext(ctx,
		`INSERT INTO questions (subject_id, key_stage, question_type, content, correct_answer, difficulty_level, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		subjectID, string(q.Stage), string(q.Kind), contentJSON, answerJSON, q.Difficulty, tagsJSON)
	if err != nil {
		return 0, apperr.Store(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Store(err)
	}

	for _, a := range q.Assets {
		if _, err := ext.ExecContext(ctx,
			`INSERT INTO assets (question_id, asset_type, file_path, alt_text, file_size, checksum)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, string(a.Kind), a.FilePath, a.AltText, a.ByteSize, a.Checksum); err != nil {
			return 0, apperr.Store(err)
		}
	}
	return id, nil
}

// UpdateQuestion validates and replaces a question's content/answer/tags
// in place; its assets are left untouched (callers manage assets via
// InsertQuestion/DeleteQuestion on the owning question).
func (s *Store) UpdateQuestion(ctx context.Context, q model.Question) error {
	if err := validateQuestion(q); err != nil {
		return err
	}
	return s.pool.Transaction(ctx, func(tx *sqlx.Tx) error {
		contentJSON, err := json.Marshal(q.Content)
		if err != nil {
			return apperr.Serialisation("encoding question content", err)
		}
		answerJSON, err := json.Marshal(q.CorrectAnswer)
		if err != nil {
			return apperr.Serialisation("encoding correct answer", err)
		}
		tagsJSON, err := json.Marshal(q.Tags)
		if err != nil {
			return apperr.Serialisation("encoding question tags", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE questions SET key_stage = ?, question_type = ?, content = ?, correct_answer = ?, difficulty_level = ?, tags = ?
			 WHERE id = ?`,
			string(q.Stage), string(q.Kind), contentJSON, answerJSON, q.Difficulty, tagsJSON, q.ID)
		if err != nil {
			return apperr.Store(err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return apperr.NotFound("question")
		}
		return nil
	})
}

// DeleteQuestion removes a question and its assets (ON DELETE CASCADE).
func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	return s.pool.Transaction(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
		if err != nil {
			return apperr.Store(err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return apperr.NotFound("question")
		}
		return nil
	})
}

// Statistics reports the total question count and a per-subject
// breakdown, used by the Content Loader/Seeder to decide what to seed.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{BySubject: make(map[string]int)}
	err := s.pool.Execute(ctx, func(db *sqlx.DB) error {
		if err := db.GetContext(ctx, &stats.TotalQuestions, `SELECT COUNT(*) FROM questions`); err != nil {
			return apperr.Store(err)
		}
		rows, err := db.QueryContext(ctx,
			`SELECT s.name, COUNT(q.id) FROM subjects s LEFT JOIN questions q ON q.subject_id = s.id GROUP BY s.name`)
		if err != nil {
			return apperr.Store(err)
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			var count int
			if err := rows.Scan(&name, &count); err != nil {
				return apperr.Store(err)
			}
			stats.BySubject[name] = count
		}
		return rows.Err()
	})
	if err != nil {
		return Statistics{}, err
	}
	return stats, nil
}

// UpsertSubject inserts subject by name, replacing display_name/icon/
// colour/description on conflict, and returns its id. Used by the
// Content Loader to resolve a pack's subject_name references and by the
// Seeder to install the canonical bank.
func (s *Store) UpsertSubject(ctx context.Context, subject model.Subject) (int64, error) {
	var id int64
	err := s.pool.Execute(ctx, func(db *sqlx.DB) error {
		var err error
		id, err = upsertSubjectTx(ctx, db, subject)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// upsertSubjectTx runs the upsert-then-read-id sequence against ext,
// which may be either a plain connection or an open transaction.
func upsertSubjectTx(ctx context.Context, ext sqlx.ExtContext, subject model.Subject) (int64, error) {
	if _, err := ext.ExecContext(ctx,
		`INSERT INTO subjects (name, display_name, icon_path, color_scheme, description)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			icon_path = excluded.icon_path,
			color_scheme = excluded.color_scheme,
			description = excluded.description`,
		subject.Name, subject.DisplayName, subject.IconPath, subject.ColorScheme, subject.Description); err != nil {
		return 0, apperr.Store(err)
	}
	var id int64
	if err := sqlx.GetContext(ctx, ext, &id, `SELECT id FROM subjects WHERE name = ?`, subject.Name); err != nil {
		return 0, apperr.Store(err)
	}
	return id, nil
}

// InstallPackage upserts subjects and inserts questions (with their
// assets) under a single transaction, per spec.md §4.6: a failure on any
// question aborts the whole pack, leaving no subjects or questions from
// this call durably committed.
func (s *Store) InstallPackage(ctx context.Context, subjects []model.Subject, questions []PackQuestionInsert) error {
	for _, pq := range questions {
		if err := validateQuestion(pq.Question); err != nil {
			return err
		}
	}
	return s.pool.Transaction(ctx, func(tx *sqlx.Tx) error {
		subjectIDs := make(map[string]int64, len(subjects))
		for _, subject := range subjects {
			id, err := upsertSubjectTx(ctx, tx, subject)
			if err != nil {
				return err
			}
			subjectIDs[subject.Name] = id
		}
		for _, pq := range questions {
			subjectID, ok := subjectIDs[pq.SubjectName]
			if !ok {
				return apperr.ContentManagement(fmt.Sprintf("question references unknown subject %q", pq.SubjectName), nil)
			}
			if _, err := insertQuestionTx(ctx, tx, subjectID, pq.Question); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteQuestionsBySubject removes every question (and, via cascade,
// every asset) belonging to subjectName. Used by the Seeder to purge a
// canonical category before reseeding it at a larger size.
func (s *Store) DeleteQuestionsBySubject(ctx context.Context, subjectName string) error {
	return s.pool.Execute(ctx, func(db *sqlx.DB) error {
		_, err := db.ExecContext(ctx,
			`DELETE FROM questions WHERE subject_id IN (SELECT id FROM subjects WHERE name = ?)`, subjectName)
		if err != nil {
			return apperr.Store(err)
		}
		return nil
	})
}

func validateQuestion(q model.Question) error {
	if q.Content.Text == "" {
		return apperr.InvalidQuestion("question text must not be empty")
	}
	if err := model.ValidateDifficulty(q.Difficulty); err != nil {
		return apperr.InvalidQuestion(err.Error())
	}
	if err := model.ValidateQuestionShape(q.Kind, q.Content); err != nil {
		return apperr.InvalidQuestion(err.Error())
	}
	return nil
}
