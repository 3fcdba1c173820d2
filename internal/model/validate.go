package model

import (
	"fmt"
	"strings"
)

// ValidateQuestionShape checks that content matches the shape its kind
// requires (spec.md §3): MultipleChoice needs non-empty options, Hotspot
// needs an image and non-empty hotspots, FillBlank needs non-empty
// blanks, StoryQuiz needs a non-empty story. DragDrop has no further
// shape constraint beyond its AdditionalData source-item list.
func ValidateQuestionShape(kind QuestionKind, content QuestionContent) error {
	switch kind {
	case KindMultipleChoice:
		if len(content.Options) == 0 {
			return fmt.Errorf("model: multiple_choice question requires non-empty options")
		}
	case KindHotspot:
		if strings.TrimSpace(content.Image) == "" {
			return fmt.Errorf("model: hotspot question requires an image")
		}
		if len(content.Hotspots) == 0 {
			return fmt.Errorf("model: hotspot question requires non-empty hotspots")
		}
	case KindFillBlank:
		if len(content.Blanks) == 0 {
			return fmt.Errorf("model: fill_blank question requires non-empty blanks")
		}
	case KindStoryQuiz:
		if strings.TrimSpace(content.Story) == "" {
			return fmt.Errorf("model: story_quiz question requires a non-empty story")
		}
	case KindDragDrop:
		// no further shape constraint
	default:
		return fmt.Errorf("model: unknown question kind %q", kind)
	}
	return nil
}

// ValidateDifficulty checks the 1..=5 invariant.
func ValidateDifficulty(d int) error {
	if d < 1 || d > 5 {
		return fmt.Errorf("model: difficulty %d out of range 1..=5", d)
	}
	return nil
}

// ValidateStage checks that s is a known Stage.
func ValidateStage(s Stage) error {
	switch s {
	case StageKS1, StageKS2:
		return nil
	default:
		return fmt.Errorf("model: unknown stage %q", s)
	}
}

// NormaliseProfileName trims and lower-cases a profile name for
// case-insensitive uniqueness comparisons (spec.md §3).
func NormaliseProfileName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Validate checks the MixConfig invariants from spec.md §3: non-empty
// subjects/stages, a valid difficulty range, and a positive question
// count.
func (c MixConfig) Validate() error {
	if len(c.Subjects) == 0 {
		return fmt.Errorf("model: mix config requires at least one subject")
	}
	if len(c.Stages) == 0 {
		return fmt.Errorf("model: mix config requires at least one stage")
	}
	for _, s := range c.Stages {
		if err := ValidateStage(s); err != nil {
			return err
		}
	}
	if c.DifficultyLow < 1 || c.DifficultyHigh > 5 || c.DifficultyLow > c.DifficultyHigh {
		return fmt.Errorf("model: invalid difficulty range [%d,%d]", c.DifficultyLow, c.DifficultyHigh)
	}
	if c.QuestionCount < 1 {
		return fmt.Errorf("model: question count must be positive")
	}
	return nil
}

// Validate checks the ProgressRow invariant correct_answers <= questions_answered.
func (p ProgressRow) Validate() error {
	if p.CorrectAnswers > p.QuestionsAnswered {
		return fmt.Errorf("model: correct_answers (%d) exceeds questions_answered (%d)", p.CorrectAnswers, p.QuestionsAnswered)
	}
	return nil
}
