package quiz

import (
	"context"
	"fmt"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/content"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
	"github.com/DDT-TDD/quizdd-engine/internal/store/contentstore"
)

// timesTablesSubject is the canonical subject name the Content Loader
// seeds generated times-table questions under (spec.md §4.6).
const timesTablesSubject = "times_tables"

// candidates fetches an oversized, deduplicated, shuffled pool for cfg
// and trims it down to cfg.QuestionCount, applying the times-tables
// easy-item cap along the way (spec.md §4.8.1).
func (e *Engine) candidates(ctx context.Context, cfg model.QuizConfig) ([]model.Question, error) {
	fetch := cfg.QuestionCount * 2
	if alt := cfg.QuestionCount + 10; alt > fetch {
		fetch = alt
	}

	filter := contentstore.Filter{Subject: cfg.Subject, Limit: fetch}
	if cfg.Stage != "" {
		stage := cfg.Stage
		filter.Stage = &stage
	}
	if cfg.HasDifficultyRange() {
		filter.DifficultyLow = cfg.DifficultyLow
		filter.DifficultyHigh = cfg.DifficultyHigh
	}

	pool, err := e.content.ListQuestions(ctx, filter)
	if err != nil {
		return nil, err
	}
	pool = dedupeByID(pool)
	if len(pool) == 0 {
		return nil, apperr.QuizEngine(fmt.Sprintf("no questions available for subject %q", cfg.Subject))
	}

	e.mu.Lock()
	e.rng.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	e.mu.Unlock()

	if cfg.Subject == timesTablesSubject {
		return balanceTimesTables(pool, cfg.QuestionCount), nil
	}
	if len(pool) > cfg.QuestionCount {
		pool = pool[:cfg.QuestionCount]
	}
	return pool, nil
}

func dedupeByID(questions []model.Question) []model.Question {
	seen := make(map[int64]bool, len(questions))
	out := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		out = append(out, q)
	}
	return out
}

// balanceTimesTables trims a shuffled times-tables pool to count items,
// keeping at most max(1, count/4) "easy" items (one of the two factors
// is 1 or 10) and only dipping into the deferred easy overflow to make
// up a shortfall (spec.md §4.8.1).
func balanceTimesTables(pool []model.Question, count int) []model.Question {
	easyCap := count / 4
	if easyCap < 1 {
		easyCap = 1
	}

	result := make([]model.Question, 0, count)
	var deferredEasy []model.Question
	easyUsed := 0

	for _, q := range pool {
		if len(result) >= count {
			break
		}
		if content.IsEasyTimesTableText(q.Content.Text) {
			if easyUsed < easyCap {
				result = append(result, q)
				easyUsed++
			} else {
				deferredEasy = append(deferredEasy, q)
			}
			continue
		}
		result = append(result, q)
	}

	for i := 0; len(result) < count && i < len(deferredEasy); i++ {
		result = append(result, deferredEasy[i])
	}
	return result
}
