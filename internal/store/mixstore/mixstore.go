// Package mixstore is the Mix Manager (spec.md §4.7): saved CustomMix
// configurations and their feasibility checks against the Content Store.
package mixstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/database"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
	"github.com/DDT-TDD/quizdd-engine/internal/store/contentstore"
)

// Repository is the narrow interface the rest of the engine depends on;
// Store is its only implementation.
type Repository interface {
	Create(ctx context.Context, name, createdBy string, cfg model.MixConfig) (model.CustomMix, error)
	Get(ctx context.Context, id string) (model.CustomMix, error)
	List(ctx context.Context, profileID string) ([]model.CustomMix, error)
	Update(ctx context.Context, id string, patch Patch) (model.CustomMix, error)
	Delete(ctx context.Context, id string) error
	AvailableCount(ctx context.Context, cfg model.MixConfig) (int, error)
	ValidateFeasibility(ctx context.Context, cfg model.MixConfig) error
}

var _ Repository = (*Store)(nil)

// Store is the SQLite-backed Mix Manager.
type Store struct {
	pool    *database.Pool
	content contentstore.Repository
}

// New builds a Store bound to pool, delegating feasibility counts to
// content.
func New(pool *database.Pool, content contentstore.Repository) *Store {
	return &Store{pool: pool, content: content}
}

// Patch carries the subset of CustomMix fields Update should change.
type Patch struct {
	Name   *string
	Config *model.MixConfig
}

type customMixRow struct {
	ID         string     `db:"id"`
	Name       string     `db:"name"`
	CreatedBy  string     `db:"created_by"`
	ConfigJSON string     `db:"config"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  *time.Time `db:"updated_at"`
}

func decodeCustomMixRow(row customMixRow) (model.CustomMix, error) {
	mix := model.CustomMix{
		ID:        row.ID,
		Name:      row.Name,
		CreatedBy: row.CreatedBy,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.ConfigJSON), &mix.Config); err != nil {
		return model.CustomMix{}, apperr.Serialisation("decoding mix config", err)
	}
	return mix, nil
}

// Create validates cfg and inserts a new CustomMix.
func (s *Store) Create(ctx context.Context, name, createdBy string, cfg model.MixConfig) (model.CustomMix, error) {
	if name == "" {
		return model.CustomMix{}, apperr.InvalidInput("mix name is required")
	}
	if err := cfg.Validate(); err != nil {
		return model.CustomMix{}, apperr.InvalidQuestion(err.Error())
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return model.CustomMix{}, apperr.Serialisation("encoding mix config", err)
	}

	mix := model.CustomMix{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: createdBy,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}

	err = s.pool.Execute(ctx, func(db *sqlx.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO custom_mixes (id, name, created_by, config, created_at) VALUES (?, ?, ?, ?, ?)`,
			mix.ID, mix.Name, mix.CreatedBy, configJSON, mix.CreatedAt)
		return err
	})
	if err != nil {
		return model.CustomMix{}, apperr.Store(err)
	}
	return mix, nil
}

// Get loads a single CustomMix by id.
func (s *Store) Get(ctx context.Context, id string) (model.CustomMix, error) {
	var mix model.CustomMix
	err := s.pool.Execute(ctx, func(db *sqlx.DB) error {
		var row customMixRow
		if err := db.GetContext(ctx, &row,
			`SELECT id, name, created_by, config, created_at, updated_at FROM custom_mixes WHERE id = ?`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("custom mix")
			}
			return apperr.Store(err)
		}
		decoded, err := decodeCustomMixRow(row)
		if err != nil {
			return err
		}
		mix = decoded
		return nil
	})
	if err != nil {
		return model.CustomMix{}, err
	}
	return mix, nil
}

// List returns every CustomMix, optionally scoped to one profile.
func (s *Store) List(ctx context.Context, profileID string) ([]model.CustomMix, error) {
	var mixes []model.CustomMix
	err := s.pool.Execute(ctx, func(db *sqlx.DB) error {
		var rows []customMixRow
		var err error
		if profileID == "" {
			err = db.SelectContext(ctx, &rows,
				`SELECT id, name, created_by, config, created_at, updated_at FROM custom_mixes ORDER BY created_at DESC`)
		} else {
			err = db.SelectContext(ctx, &rows,
				`SELECT id, name, created_by, config, created_at, updated_at FROM custom_mixes WHERE created_by = ? ORDER BY created_at DESC`, profileID)
		}
		if err != nil {
			return apperr.Store(err)
		}
		for _, row := range rows {
			decoded, err := decodeCustomMixRow(row)
			if err != nil {
				return err
			}
			mixes = append(mixes, decoded)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mixes, nil
}

// Update applies patch's supplied fields, re-validating each one, and
// stamps updated_at on success.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (model.CustomMix, error) {
	var updated model.CustomMix
	err := s.pool.Transaction(ctx, func(tx *sqlx.Tx) error {
		var row customMixRow
		if err := tx.GetContext(ctx, &row,
			`SELECT id, name, created_by, config, created_at, updated_at FROM custom_mixes WHERE id = ?`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("custom mix")
			}
			return apperr.Store(err)
		}
		mix, err := decodeCustomMixRow(row)
		if err != nil {
			return err
		}

		if patch.Name != nil {
			if *patch.Name == "" {
				return apperr.InvalidInput("mix name is required")
			}
			mix.Name = *patch.Name
		}
		if patch.Config != nil {
			if err := patch.Config.Validate(); err != nil {
				return apperr.InvalidQuestion(err.Error())
			}
			mix.Config = *patch.Config
		}

		configJSON, err := json.Marshal(mix.Config)
		if err != nil {
			return apperr.Serialisation("encoding mix config", err)
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE custom_mixes SET name = ?, config = ?, updated_at = ? WHERE id = ?`,
			mix.Name, configJSON, now, id); err != nil {
			return apperr.Store(err)
		}
		mix.UpdatedAt = &now
		updated = mix
		return nil
	})
	if err != nil {
		return model.CustomMix{}, err
	}
	return updated, nil
}

// Delete removes a CustomMix. Any persisted session referencing it is
// removed in the same transaction so no session points to a ghost mix;
// the engine holds sessions in memory only (spec.md §4.8), so in practice
// this only ever touches the reserved quiz_sessions table.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.pool.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_sessions WHERE mix_id = ?`, id); err != nil {
			return apperr.Store(err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM custom_mixes WHERE id = ?`, id)
		if err != nil {
			return apperr.Store(err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return apperr.NotFound("custom mix")
		}
		return nil
	})
}

// AvailableCount counts distinct questions matching cfg across every
// configured subject/stage pair.
func (s *Store) AvailableCount(ctx context.Context, cfg model.MixConfig) (int, error) {
	total := 0
	for _, subject := range cfg.Subjects {
		for _, stage := range cfg.Stages {
			stage := stage
			count, err := s.content.CountQuestions(ctx, contentstore.Filter{
				Subject:        subject,
				Stage:          &stage,
				DifficultyLow:  cfg.DifficultyLow,
				DifficultyHigh: cfg.DifficultyHigh,
				AllowedKinds:   cfg.AllowedKinds,
			})
			if err != nil {
				return 0, err
			}
			total += count
		}
	}
	return total, nil
}

// ValidateFeasibility reports InvalidQuestion when fewer questions are
// available than cfg.QuestionCount requires.
func (s *Store) ValidateFeasibility(ctx context.Context, cfg model.MixConfig) error {
	available, err := s.AvailableCount(ctx, cfg)
	if err != nil {
		return err
	}
	if available < cfg.QuestionCount {
		return apperr.InvalidQuestion("not enough questions available for this mix configuration")
	}
	return nil
}
