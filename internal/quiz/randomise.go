package quiz

import (
	"fmt"

	"github.com/DDT-TDD/quizdd-engine/internal/model"
)

// sourceItemsKey is where DragDrop's shuffleable source item list lives
// inside QuestionContent.AdditionalData.
const sourceItemsKey = "source_items"

// sanitizeForDisplay builds the learner-facing copy of the question at
// cursor: tags cleared, and MultipleChoice/DragDrop content randomised
// the first time this cursor is read, then served from the session's
// cache on every subsequent read (Decision D1). Caller holds e.mu.
func (e *Engine) sanitizeForDisplay(session *model.QuizSession, cursor int) model.Question {
	q := session.Questions[cursor]
	q.Tags = nil

	switch q.Kind {
	case model.KindMultipleChoice:
		if cached, ok := session.CachedOptionsAt(cursor); ok {
			q.Content.Options = cached
			return q
		}
		shuffled := append([]string(nil), q.Content.Options...)
		e.rng.shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		session.CacheOptionsAt(cursor, shuffled)
		q.Content.Options = shuffled

	case model.KindDragDrop:
		if cached, ok := session.CachedOptionsAt(cursor); ok {
			q.Content.AdditionalData = withSourceItems(q.Content.AdditionalData, cached)
			return q
		}
		items := sourceItemsAsStrings(q.Content.AdditionalData)
		e.rng.shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		session.CacheOptionsAt(cursor, items)
		q.Content.AdditionalData = withSourceItems(q.Content.AdditionalData, items)
	}
	return q
}

func sourceItemsAsStrings(additional map[string]any) []string {
	raw, ok := additional[sourceItemsKey]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				out[i] = s
			} else {
				out[i] = fmt.Sprintf("%v", item)
			}
		}
		return out
	default:
		return nil
	}
}

func withSourceItems(additional map[string]any, items []string) map[string]any {
	out := make(map[string]any, len(additional))
	for k, v := range additional {
		out[k] = v
	}
	out[sourceItemsKey] = items
	return out
}
