package quiz

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
)

// coordinateToleranceUnits is the Euclidean distance within which a
// submitted Hotspot point is accepted against some canonical point
// (spec.md §4.8.4).
const coordinateToleranceUnits = 20.0

// fuzzyTextMinLength is the shortest normalised text answer eligible
// for Levenshtein-distance-1 fuzzy matching; shorter answers must match
// exactly to avoid false positives like "cat" vs "cot".
const fuzzyTextMinLength = 8

// validateAnswer grades submitted against question's canonical answer
// and computes the points it earns if correct (spec.md §4.8.4/§4.8.5).
// A canonical/submitted kind mismatch is a caller error, not a wrong
// answer, and is reported as such.
func validateAnswer(question model.Question, submitted model.Answer) (model.AnswerResult, error) {
	canonical := question.CorrectAnswer
	if canonical.Kind != submitted.Kind {
		return model.AnswerResult{}, apperr.QuizEngine("submitted answer kind does not match the question")
	}

	var correct bool
	switch canonical.Kind {
	case model.AnswerKindText:
		correct = matchText(question, canonical.Text, submitted.Text)
	case model.AnswerKindMultiple:
		correct = equalStringSet(canonical.Multiple, submitted.Multiple)
	case model.AnswerKindCoordinates:
		correct = matchCoordinates(canonical.Coordinates, submitted.Coordinates)
	case model.AnswerKindMapping:
		correct = equalMapping(canonical.Mapping, submitted.Mapping)
	default:
		return model.AnswerResult{}, apperr.QuizEngine("question has no recognised answer kind")
	}

	points := 0
	if correct {
		points = basePoints(question.Difficulty) + bonusPoints(question.Kind)
	}

	return model.AnswerResult{
		QuestionID:    question.ID,
		IsCorrect:     correct,
		Points:        points,
		CorrectAnswer: canonical,
	}, nil
}

func matchText(question model.Question, expected, submitted string) bool {
	normExpected := strings.ToLower(strings.TrimSpace(expected))
	normSubmitted := strings.ToLower(strings.TrimSpace(submitted))
	if normExpected == normSubmitted {
		return true
	}

	if question.Kind == model.KindFillBlank {
		for _, blank := range question.Content.Blanks {
			if strings.EqualFold(blank.Expected, strings.TrimSpace(submitted)) {
				return true
			}
			for _, alt := range blank.Alternatives {
				if strings.EqualFold(alt, strings.TrimSpace(submitted)) {
					return true
				}
			}
		}
	}

	if len([]rune(normExpected)) >= fuzzyTextMinLength {
		return levenshtein.ComputeDistance(normExpected, normSubmitted) <= 1
	}
	return false
}

func equalStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, v := range a {
		set[v]++
	}
	for _, v := range b {
		set[v]--
	}
	for _, count := range set {
		if count != 0 {
			return false
		}
	}
	return true
}

func matchCoordinates(canonical, submitted []model.Point) bool {
	if len(canonical) != len(submitted) {
		return false
	}
	for _, p := range submitted {
		if !withinAnyPoint(p, canonical, coordinateToleranceUnits) {
			return false
		}
	}
	return true
}

func withinAnyPoint(p model.Point, candidates []model.Point, tolerance float64) bool {
	for _, c := range candidates {
		dx := p.X - c.X
		dy := p.Y - c.Y
		if math.Sqrt(dx*dx+dy*dy) <= tolerance {
			return true
		}
	}
	return false
}

func equalMapping(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
