package quiz

import (
	"github.com/DDT-TDD/quizdd-engine/internal/model"
)

// FinaliseResult is the `finalise` operation's return shape (spec.md
// §4.8.5): the scored summary of a completed session.
type FinaliseResult struct {
	TotalQuestions      int
	Answered            int
	Correct             int
	AccuracyPercentage  int
	TotalPoints         int
	TimeBonus           int
	StreakBonus         int
	FinalScore          int
	PerformanceLevel    string
	Achievements        []string
	LongestCorrectStreak int
}

func basePoints(difficulty int) int {
	switch difficulty {
	case 1:
		return 10
	case 2:
		return 15
	case 3:
		return 20
	case 4:
		return 25
	case 5:
		return 30
	default:
		return 10
	}
}

func bonusPoints(kind model.QuestionKind) int {
	switch kind {
	case model.KindFillBlank:
		return 5
	case model.KindDragDrop, model.KindHotspot:
		return 10
	case model.KindStoryQuiz:
		return 15
	default:
		return 0
	}
}

func longestCorrectStreak(answers []model.AnswerResult) int {
	longest, current := 0, 0
	for _, a := range answers {
		if a.IsCorrect {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

// roundPercent rounds numerator/denominator*100 half up, matching
// profilestore's own accuracy convention (spec.md §4.4) so the same
// 2-of-3 answer set reports the same 67% whether it comes from a
// session's own finalise or a profile's aggregated progress.
func roundPercent(numerator, denominator int) int {
	if denominator == 0 {
		return 0
	}
	return int(float64(numerator)/float64(denominator)*100 + 0.5)
}

func performanceLevel(accuracy int) string {
	switch {
	case accuracy >= 90:
		return "Excellent"
	case accuracy >= 80:
		return "Good"
	case accuracy >= 70:
		return "Fair"
	case accuracy >= 60:
		return "NeedsImprovement"
	default:
		return "Poor"
	}
}

// finalise scores a completed session (spec.md §4.8.5). The caller must
// already have confirmed the session is completed.
func finalise(session *model.QuizSession) FinaliseResult {
	total := len(session.Questions)
	answered := len(session.Answers)
	correct := countCorrect(session.Answers)

	denominator := answered
	if answered >= total {
		denominator = total
	}
	accuracy := roundPercent(correct, denominator)

	totalPoints := 0
	for _, a := range session.Answers {
		totalPoints += a.Points
	}

	avgTime := 0.0
	if answered > 0 {
		avgTime = float64(session.AccumulatedTimeSeconds) / float64(answered)
	}
	timeBonus := 0
	if answered > 0 && avgTime <= 30 {
		timeBonus = int(((30 - avgTime) / 30) * 50)
	}

	streak := longestCorrectStreak(session.Answers)
	streakBonus := 0
	if streak >= 3 {
		streakBonus = (streak - 2) * 5
	}

	achievements := make([]string, 0, 3)
	if accuracy == 100 && answered >= 5 {
		achievements = append(achievements, "perfect_score")
	}
	if answered > 0 && avgTime <= 15 && accuracy >= 80 {
		achievements = append(achievements, "speed_demon")
	}
	if streak >= 10 {
		achievements = append(achievements, "streak_master")
	}

	return FinaliseResult{
		TotalQuestions:       total,
		Answered:             answered,
		Correct:              correct,
		AccuracyPercentage:   accuracy,
		TotalPoints:          totalPoints,
		TimeBonus:            timeBonus,
		StreakBonus:          streakBonus,
		FinalScore:           totalPoints + timeBonus + streakBonus,
		PerformanceLevel:     performanceLevel(accuracy),
		Achievements:         achievements,
		LongestCorrectStreak: streak,
	}
}
