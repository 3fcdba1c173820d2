// Package profilestore is the Profile Store (spec.md §4.4): learner
// profiles, their aggregated progress, and earned achievements.
package profilestore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/database"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
)

// Repository is the narrow interface the rest of the engine depends on;
// Store is its only implementation.
type Repository interface {
	Create(ctx context.Context, name, avatar string) (model.Profile, error)
	List(ctx context.Context) ([]model.Profile, error)
	Update(ctx context.Context, id string, patch ProfilePatch) (model.Profile, error)
	Delete(ctx context.Context, id string) error
	GetProgress(ctx context.Context, profileID string) (ProgressSummary, error)
	RecordResult(ctx context.Context, profileID string, delta ResultDelta) error
}

var _ Repository = (*Store)(nil)

// Store is the SQLite-backed Profile Store, queried through sqlx for
// struct-scanned reads.
type Store struct {
	pool *database.Pool
}

// New builds a Store bound to pool.
func New(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

// ProfilePatch carries the subset of Profile fields Update should change;
// nil fields are left untouched.
type ProfilePatch struct {
	Name   *string
	Avatar *string
	Theme  *string
}

// ResultDelta is one quiz session's contribution to a profile's progress.
type ResultDelta struct {
	Subject           string
	Stage             model.Stage
	QuestionsAnswered int
	CorrectAnswers    int
	TimeSpentSeconds  int
}

// ProgressSummary is get_progress's return shape: a per-(subject, stage)
// breakdown plus totals and earned achievements.
type ProgressSummary struct {
	Rows            []model.ProgressRow
	Achievements    []model.Achievement
	TotalAnswered   int
	TotalCorrect    int
	OverallAccuracy int
}

// Create validates and inserts a new profile, seeding a zeroed ProgressRow
// for every canonical subject x stage pair.
func (s *Store) Create(ctx context.Context, name, avatar string) (model.Profile, error) {
	if name == "" || len(name) > 50 {
		return model.Profile{}, apperr.InvalidInput("profile name must be 1..50 characters")
	}
	if avatar == "" {
		return model.Profile{}, apperr.InvalidInput("avatar is required")
	}

	normalised := model.NormaliseProfileName(name)
	profile := model.Profile{
		ID:        uuid.NewString(),
		Name:      name,
		Avatar:    avatar,
		Theme:     "default",
		CreatedAt: time.Now().UTC(),
	}

	err := s.pool.Transaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (id, name, name_normalised, avatar, theme_preference, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			profile.ID, profile.Name, normalised, profile.Avatar, profile.Theme, profile.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.InvalidInput("a profile with this name already exists")
			}
			return apperr.Store(err)
		}

		for _, subject := range model.CanonicalSubjects {
			for _, stage := range []model.Stage{model.StageKS1, model.StageKS2} {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO progress (profile_id, subject, key_stage, questions_answered, correct_answers, total_time_spent, last_activity)
					 VALUES (?, ?, ?, 0, 0, 0, ?)`,
					profile.ID, subject, string(stage), profile.CreatedAt); err != nil {
					return apperr.Store(err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return model.Profile{}, err
	}
	return profile, nil
}

// List returns all profiles ordered by created_at descending, creating a
// single default profile the first time it is called against an empty
// store.
func (s *Store) List(ctx context.Context) ([]model.Profile, error) {
	profiles, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	if len(profiles) > 0 {
		return profiles, nil
	}

	if _, err := s.Create(ctx, "Default User", "default"); err != nil {
		return nil, err
	}
	return s.list(ctx)
}

func (s *Store) list(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	err := s.pool.Execute(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &profiles,
			`SELECT id, name, avatar, theme_preference, created_at FROM profiles ORDER BY created_at DESC`)
	})
	if err != nil {
		return nil, apperr.Store(err)
	}
	return profiles, nil
}

// Update applies patch's supplied fields; name uniqueness excludes id
// itself. Any invalid field rejects the whole update.
func (s *Store) Update(ctx context.Context, id string, patch ProfilePatch) (model.Profile, error) {
	var updated model.Profile
	err := s.pool.Transaction(ctx, func(tx *sqlx.Tx) error {
		var p model.Profile
		err := tx.GetContext(ctx, &p,
			`SELECT id, name, avatar, theme_preference, created_at FROM profiles WHERE id = ?`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ProfileNotFound(id)
		}
		if err != nil {
			return apperr.Store(err)
		}

		if patch.Name != nil {
			if *patch.Name == "" || len(*patch.Name) > 50 {
				return apperr.InvalidInput("profile name must be 1..50 characters")
			}
			p.Name = *patch.Name
		}
		if patch.Avatar != nil {
			if *patch.Avatar == "" {
				return apperr.InvalidInput("avatar is required")
			}
			p.Avatar = *patch.Avatar
		}
		if patch.Theme != nil {
			p.Theme = *patch.Theme
		}

		normalised := model.NormaliseProfileName(p.Name)
		var clashID string
		err = tx.GetContext(ctx, &clashID,
			`SELECT id FROM profiles WHERE name_normalised = ? AND id != ?`, normalised, id)
		if err == nil {
			return apperr.InvalidInput("a profile with this name already exists")
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return apperr.Store(err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE profiles SET name = ?, name_normalised = ?, avatar = ?, theme_preference = ? WHERE id = ?`,
			p.Name, normalised, p.Avatar, p.Theme, id); err != nil {
			return apperr.Store(err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return model.Profile{}, err
	}
	return updated, nil
}

// Delete removes a profile and, in the same transaction, every
// ProgressRow, Achievement, and CustomMix it owns (via the foreign keys'
// ON DELETE CASCADE, which the pool's DSN enables).
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.pool.Transaction(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
		if err != nil {
			return apperr.Store(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return apperr.Store(err)
		}
		if affected == 0 {
			return apperr.ProfileNotFound(id)
		}
		return nil
	})
}

// GetProgress aggregates a profile's ProgressRows and Achievements.
func (s *Store) GetProgress(ctx context.Context, profileID string) (ProgressSummary, error) {
	var summary ProgressSummary
	err := s.pool.Execute(ctx, func(db *sqlx.DB) error {
		var exists string
		if err := db.GetContext(ctx, &exists, `SELECT id FROM profiles WHERE id = ?`, profileID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.ProfileNotFound(profileID)
			}
			return apperr.Store(err)
		}

		if err := db.SelectContext(ctx, &summary.Rows,
			`SELECT profile_id, subject, key_stage, questions_answered, correct_answers, total_time_spent, last_activity
			 FROM progress WHERE profile_id = ?`, profileID); err != nil {
			return apperr.Store(err)
		}
		for _, r := range summary.Rows {
			summary.TotalAnswered += r.QuestionsAnswered
			summary.TotalCorrect += r.CorrectAnswers
		}

		if err := db.SelectContext(ctx, &summary.Achievements,
			`SELECT profile_id, achievement_id, name, description, icon, category, earned_at
			 FROM achievements WHERE profile_id = ?`, profileID); err != nil {
			return apperr.Store(err)
		}
		return nil
	})
	if err != nil {
		return ProgressSummary{}, err
	}
	if summary.TotalAnswered > 0 {
		summary.OverallAccuracy = roundPercent(summary.TotalCorrect, summary.TotalAnswered)
	}
	return summary, nil
}

// RecordResult upserts the relevant ProgressRow by adding delta, stamps
// last_activity, and evaluates/inserts newly earned achievements.
func (s *Store) RecordResult(ctx context.Context, profileID string, delta ResultDelta) error {
	return s.pool.Transaction(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`UPDATE progress
			 SET questions_answered = questions_answered + ?,
			     correct_answers = correct_answers + ?,
			     total_time_spent = total_time_spent + ?,
			     last_activity = ?
			 WHERE profile_id = ? AND subject = ? AND key_stage = ?`,
			delta.QuestionsAnswered, delta.CorrectAnswers, delta.TimeSpentSeconds, now,
			profileID, delta.Subject, string(delta.Stage))
		if err != nil {
			return apperr.Store(err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO progress (profile_id, subject, key_stage, questions_answered, correct_answers, total_time_spent, last_activity)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				profileID, delta.Subject, string(delta.Stage),
				delta.QuestionsAnswered, delta.CorrectAnswers, delta.TimeSpentSeconds, now); err != nil {
				return apperr.Store(err)
			}
		}

		totalAnswered, totalCorrect, distinctSubjects, err := aggregateForAchievements(ctx, tx, profileID)
		if err != nil {
			return err
		}

		for _, ach := range earnedAchievements(totalAnswered, totalCorrect, distinctSubjects) {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO achievements (profile_id, achievement_id, name, description, icon, category, earned_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				profileID, ach.ID, ach.Name, ach.Description, ach.Icon, ach.Category, now); err != nil {
				return apperr.Store(err)
			}
		}
		return nil
	})
}

func aggregateForAchievements(ctx context.Context, tx *sqlx.Tx, profileID string) (answered, correct, distinctSubjects int, err error) {
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(questions_answered), 0), COALESCE(SUM(correct_answers), 0)
		 FROM progress WHERE profile_id = ?`, profileID)
	if err = row.Scan(&answered, &correct); err != nil {
		return 0, 0, 0, apperr.Store(err)
	}
	row = tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT subject) FROM progress WHERE profile_id = ? AND questions_answered > 0`, profileID)
	if err = row.Scan(&distinctSubjects); err != nil {
		return 0, 0, 0, apperr.Store(err)
	}
	return answered, correct, distinctSubjects, nil
}

// achievementRule is the static definition of one achievement, per
// spec.md §4.4.
type achievementRule struct {
	model.Achievement
	earned func(answered, correct, distinctSubjects int) bool
}

var achievementRules = []achievementRule{
	{
		Achievement: model.Achievement{ID: "first_steps", Name: "First Steps", Description: "Answered your first question", Icon: "star", Category: model.CategoryCompletion},
		earned:      func(answered, _, _ int) bool { return answered >= 1 },
	},
	{
		Achievement: model.Achievement{ID: "quick_learner", Name: "Quick Learner", Description: "Answered 10 questions", Icon: "bolt", Category: model.CategoryCompletion},
		earned:      func(answered, _, _ int) bool { return answered >= 10 },
	},
	{
		Achievement: model.Achievement{ID: "perfect_score", Name: "Perfect Score", Description: "100% accuracy over 5+ questions", Icon: "trophy", Category: model.CategoryAccuracy},
		earned: func(answered, correct, _ int) bool {
			return answered >= 5 && correct == answered
		},
	},
	{
		Achievement: model.Achievement{ID: "subject_explorer", Name: "Subject Explorer", Description: "Tried 3 or more subjects", Icon: "compass", Category: model.CategorySubjectMastery},
		earned:      func(_, _, distinctSubjects int) bool { return distinctSubjects >= 3 },
	},
}

func earnedAchievements(answered, correct, distinctSubjects int) []model.Achievement {
	var out []model.Achievement
	for _, rule := range achievementRules {
		if rule.earned(answered, correct, distinctSubjects) {
			out = append(out, rule.Achievement)
		}
	}
	return out
}

func roundPercent(numerator, denominator int) int {
	if denominator == 0 {
		return 0
	}
	return int(float64(numerator)/float64(denominator)*100 + 0.5)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
