package content

import (
	"fmt"
	"sort"

	"github.com/DDT-TDD/quizdd-engine/internal/model"
)

// timesTablesCanonicalCount is the size of the fully-generated bank: one
// question per (a, b) pair in 1..=12 x 1..=12 (spec.md §4.6).
const timesTablesCanonicalCount = 12 * 12

// generateTimesTables produces one MultipleChoice question per (a, b) in
// 1..=12 x 1..=12, each with the correct product and exactly three
// distinct distractors chosen per spec.md §4.6.
func generateTimesTables() []model.Question {
	questions := make([]model.Question, 0, timesTablesCanonicalCount)
	for a := 1; a <= 12; a++ {
		for b := 1; b <= 12; b++ {
			questions = append(questions, timesTableQuestion(a, b))
		}
	}
	return questions
}

func timesTableQuestion(a, b int) model.Question {
	product := a * b
	distractors := distinctDistractors(a, b, product)
	options := append([]string{}, itoaAll(distractors)...)
	options = append(options, fmt.Sprintf("%d", product))
	// Interleave the correct answer among the distractors rather than
	// always appending last, so option position carries no signal.
	options = shuffleStrings(options, a, b)

	stage, difficulty := timesTableBand(a, b)

	return model.Question{
		Stage:      stage,
		Kind:       model.KindMultipleChoice,
		Difficulty: difficulty,
		Content: model.QuestionContent{
			Text:    fmt.Sprintf("What is %d × %d?", a, b),
			Options: options,
		},
		CorrectAnswer: model.NewTextAnswer(fmt.Sprintf("%d", product)),
		Tags:          []string{"times_tables", fmt.Sprintf("table_%d", a)},
	}
}

// distinctDistractors picks three distinct positive integers, none equal
// to product, from {product±1, product±2, (a-1)*b, a*(b-1)}, by taking
// the first, median, and last of the sorted distinct candidate set and
// padding with product+k when fewer than three candidates exist.
func distinctDistractors(a, b, product int) []int {
	candidateSet := map[int]bool{}
	for _, c := range []int{product - 1, product + 1, product - 2, product + 2, (a - 1) * b, a * (b - 1)} {
		if c > 0 && c != product {
			candidateSet[c] = true
		}
	}
	candidates := make([]int, 0, len(candidateSet))
	for c := range candidateSet {
		candidates = append(candidates, c)
	}
	sort.Ints(candidates)

	var chosen []int
	switch len(candidates) {
	case 0:
		chosen = nil
	case 1:
		chosen = []int{candidates[0]}
	case 2:
		chosen = candidates
	default:
		chosen = []int{candidates[0], candidates[len(candidates)/2], candidates[len(candidates)-1]}
	}

	k := 1
	used := map[int]bool{product: true}
	for _, c := range chosen {
		used[c] = true
	}
	for len(chosen) < 3 {
		candidate := product + k
		k++
		if !used[candidate] {
			chosen = append(chosen, candidate)
			used[candidate] = true
		}
	}
	return chosen
}

func itoaAll(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%d", v)
	}
	return out
}

// shuffleStrings deterministically reorders options using (a, b) as the
// seed, so regenerating the same (a, b) pair always yields the same
// option order (fixture stability across reseeds) while distinct pairs
// land on distinct orderings.
func shuffleStrings(values []string, a, b int) []string {
	out := append([]string{}, values...)
	offset := (a*31 + b) % len(out)
	rotated := append(out[offset:], out[:offset]...)
	return rotated
}

// timesTableBand assigns stage/difficulty per spec.md §4.6.
func timesTableBand(a, b int) (model.Stage, int) {
	switch {
	case a <= 2 || b <= 2 || a == 10 || b == 10:
		return model.StageKS1, 1
	case a <= 5 && b <= 5:
		return model.StageKS1, 2
	case a <= 10 && b <= 10:
		return model.StageKS2, 3
	default:
		return model.StageKS2, 4
	}
}

// IsEasyTimesTableText reports whether a times-tables question's text
// matches the Quiz Engine's "easy" predicate from spec.md §4.8.1: its
// text parses as "a × b" with a = 1, b = 1, a = 10, or b = 10.
func IsEasyTimesTableText(text string) bool {
	var a, b int
	if _, err := fmt.Sscanf(text, "What is %d × %d?", &a, &b); err != nil {
		return false
	}
	return a == 1 || b == 1 || a == 10 || b == 10
}
