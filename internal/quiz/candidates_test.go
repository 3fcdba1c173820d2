package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DDT-TDD/quizdd-engine/internal/model"
)

func timesTableQuestionFixture(id int64, a, b int) model.Question {
	easy := a == 1 || b == 1 || a == 10 || b == 10
	text := "What is 2 × 2?"
	if easy {
		text = "What is 1 × 2?"
	}
	return model.Question{ID: id, SubjectName: timesTablesSubject, Content: model.QuestionContent{Text: text}}
}

func TestDedupeByIDRemovesRepeats(t *testing.T) {
	questions := []model.Question{{ID: 1}, {ID: 2}, {ID: 1}}
	out := dedupeByID(questions)
	assert.Len(t, out, 2)
}

func TestBalanceTimesTablesCapsEasyItems(t *testing.T) {
	var pool []model.Question
	for i := int64(1); i <= 20; i++ {
		pool = append(pool, timesTableQuestionFixture(i, 1, 2)) // all "easy"
	}
	result := balanceTimesTables(pool, 8)
	assert.Len(t, result, 8)

	easyCount := 0
	for _, q := range result {
		if q.Content.Text == "What is 1 × 2?" {
			easyCount++
		}
	}
	assert.LessOrEqual(t, easyCount, 2) // max(1, 8/4) == 2
}

func TestBalanceTimesTablesFillsShortfallFromDeferredEasy(t *testing.T) {
	var pool []model.Question
	for i := int64(1); i <= 5; i++ {
		pool = append(pool, timesTableQuestionFixture(i, 1, 2)) // only easy items available
	}
	result := balanceTimesTables(pool, 5)
	assert.Len(t, result, 5) // falls back to deferred easy rather than coming up short
}
