// Package model defines the engine's data model (spec.md §3): the
// relational entities held by the embedded store plus the ephemeral,
// in-memory quiz-session types.
package model

import "time"

// Stage is a UK primary-school key stage band.
type Stage string

const (
	StageKS1 Stage = "KS1"
	StageKS2 Stage = "KS2"
)

// QuestionKind is the interaction style of a question.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple_choice"
	KindFillBlank      QuestionKind = "fill_blank"
	KindHotspot        QuestionKind = "hotspot"
	KindDragDrop       QuestionKind = "drag_drop"
	KindStoryQuiz      QuestionKind = "story_quiz"
)

// AssetKind classifies a Question asset.
type AssetKind string

const (
	AssetImage     AssetKind = "image"
	AssetAudio     AssetKind = "audio"
	AssetAnimation AssetKind = "animation"
)

// AchievementCategory groups achievements for display/filtering.
type AchievementCategory string

const (
	CategoryAccuracy        AchievementCategory = "accuracy"
	CategoryStreak          AchievementCategory = "streak"
	CategoryCompletion      AchievementCategory = "completion"
	CategoryTime            AchievementCategory = "time"
	CategorySubjectMastery  AchievementCategory = "subject_mastery"
)

// CanonicalSubjects is the small, essentially-static set of subject
// categories seeded by the Content Loader (spec.md §4.6).
var CanonicalSubjects = []string{
	"mathematics", "geography", "english", "science",
	"general_knowledge", "times_tables", "flags_capitals",
}

// Profile is a learner profile (spec.md §3).
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Avatar    string    `json:"avatar" db:"avatar"`
	Theme     string    `json:"theme" db:"theme_preference"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Subject is a top-level content category.
type Subject struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	DisplayName string  `json:"display_name" db:"display_name"`
	IconPath    *string `json:"icon_path,omitempty" db:"icon_path"`
	ColorScheme *string `json:"color_scheme,omitempty" db:"color_scheme"`
	Description *string `json:"description,omitempty" db:"description"`
}

// Hotspot is a coordinate region on an image.
type Hotspot struct {
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
	Label  string   `json:"label,omitempty"`
}

// Blank is one fill-in-the-blank slot.
type Blank struct {
	Position      int      `json:"position"`
	Expected      string   `json:"expected"`
	CaseSensitive bool     `json:"case_sensitive"`
	Alternatives  []string `json:"alternatives,omitempty"`
}

// QuestionContent carries the kind-specific parts of a Question.
type QuestionContent struct {
	Text         string    `json:"text"`
	Options      []string  `json:"options,omitempty"`
	Story        string    `json:"story,omitempty"`
	StoryPrompts []string  `json:"story_prompts,omitempty"`
	Image        string    `json:"image,omitempty"`
	Hotspots     []Hotspot `json:"hotspots,omitempty"`
	Blanks       []Blank   `json:"blanks,omitempty"`
	// AdditionalData holds kind-specific extras that don't warrant their own
	// column, e.g. DragDrop's shuffleable source item list.
	AdditionalData map[string]any `json:"additional_data,omitempty"`
}

// Question is a single quiz item.
type Question struct {
	ID            int64           `json:"id" db:"id"`
	SubjectID     int64           `json:"subject_id" db:"subject_id"`
	SubjectName   string          `json:"subject_name,omitempty" db:"-"`
	Stage         Stage           `json:"stage" db:"key_stage"`
	Kind          QuestionKind    `json:"kind" db:"question_type"`
	Content       QuestionContent `json:"content" db:"-"`
	CorrectAnswer Answer          `json:"correct_answer" db:"-"`
	Difficulty    int             `json:"difficulty" db:"difficulty_level"`
	Tags          []string        `json:"tags" db:"-"`
	Assets        []Asset         `json:"assets,omitempty" db:"-"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Asset is a media file attached to a Question.
type Asset struct {
	ID         int64     `json:"id" db:"id"`
	QuestionID int64     `json:"question_id" db:"question_id"`
	Kind       AssetKind `json:"asset_kind" db:"asset_type"`
	FilePath   string    `json:"file_path" db:"file_path"`
	AltText    *string   `json:"alt_text,omitempty" db:"alt_text"`
	ByteSize   *int64    `json:"byte_size,omitempty" db:"file_size"`
	Checksum   *string   `json:"checksum,omitempty" db:"checksum"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ProgressRow aggregates a profile's activity in one (subject, stage) pair.
type ProgressRow struct {
	ProfileID         string    `db:"profile_id"`
	SubjectName       string    `db:"subject"`
	Stage             Stage     `db:"key_stage"`
	QuestionsAnswered int       `db:"questions_answered"`
	CorrectAnswers    int       `db:"correct_answers"`
	TimeSpentSeconds  int       `db:"total_time_spent"`
	LastActivity      time.Time `db:"last_activity"`
}

// Achievement is an earned badge.
type Achievement struct {
	ID          string              `json:"id" db:"achievement_id"`
	ProfileID   string              `json:"profile_id" db:"profile_id"`
	Name        string              `json:"name" db:"name"`
	Description string              `json:"description" db:"description"`
	Icon        string              `json:"icon" db:"icon"`
	Category    AchievementCategory `json:"category" db:"category"`
	EarnedAt    time.Time           `json:"earned_at" db:"earned_at"`
}

// MixConfig is the feasibility-checked filter behind a CustomMix or an
// ad-hoc quiz start request.
type MixConfig struct {
	Subjects        []string       `json:"subjects"`
	Stages          []Stage        `json:"stages"`
	DifficultyLow   int            `json:"difficulty_low"`
	DifficultyHigh  int            `json:"difficulty_high"`
	QuestionCount   int            `json:"question_count"`
	AllowedKinds    []QuestionKind `json:"allowed_kinds,omitempty"`
}

// CustomMix is a saved MixConfig.
type CustomMix struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	CreatedBy string     `json:"created_by" db:"created_by"`
	Config    MixConfig  `json:"config" db:"-"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// QuizConfig configures a single ephemeral quiz session.
type QuizConfig struct {
	Subject            string  `json:"subject"`
	Stage              Stage   `json:"stage"`
	QuestionCount      int     `json:"question_count"`
	DifficultyLow      int     `json:"difficulty_low,omitempty"`
	DifficultyHigh     int     `json:"difficulty_high,omitempty"`
	TimeLimitSeconds   *int    `json:"time_limit_seconds,omitempty"`
	RandomiseQuestions bool    `json:"randomise_questions"`
	RandomiseAnswers   bool    `json:"randomise_answers"`
}

// HasDifficultyRange reports whether an explicit difficulty range was set.
func (c QuizConfig) HasDifficultyRange() bool {
	return c.DifficultyLow > 0 && c.DifficultyHigh > 0
}

// AnswerResult records the outcome of one submitted answer.
type AnswerResult struct {
	QuestionID       int64   `json:"question_id"`
	IsCorrect        bool    `json:"is_correct"`
	Points           int     `json:"points"`
	CorrectAnswer    Answer  `json:"correct_answer"`
	Explanation      *string `json:"explanation,omitempty"`
	TimeTakenSeconds *int    `json:"time_taken_seconds,omitempty"`
}

// QuizSession is the ephemeral, in-memory session state machine
// (spec.md §4.8.3). It is never persisted; it dies with the process.
type QuizSession struct {
	ID                     uint64
	ProfileID              string
	Config                 QuizConfig
	Questions              []Question
	Answers                []AnswerResult
	Cursor                 int
	StartedAt              time.Time
	CompletedAt            *time.Time
	AccumulatedTimeSeconds int
	Paused                 bool
	PauseStart             *time.Time

	// shuffledOptions caches the per-cursor MultipleChoice option order so
	// re-reading the current question doesn't reshuffle it (Decision D1).
	shuffledOptions map[int][]string
}

// CachedOptionsAt returns the MultipleChoice option order previously
// cached for cursor position i, if any (Decision D1).
func (s *QuizSession) CachedOptionsAt(i int) ([]string, bool) {
	opts, ok := s.shuffledOptions[i]
	return opts, ok
}

// CacheOptionsAt stores the MultipleChoice option order for cursor
// position i so subsequent reads of the same question return the same
// ordering (Decision D1).
func (s *QuizSession) CacheOptionsAt(i int, options []string) {
	if s.shuffledOptions == nil {
		s.shuffledOptions = make(map[int][]string)
	}
	s.shuffledOptions[i] = options
}

// IsCompleted reports whether the session has reached its terminal state.
func (s *QuizSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

// SchemaMigration records one applied migration (mirrors the table
// golang-migrate itself maintains; see spec_full.md §6).
type SchemaMigration struct {
	Version     uint32    `db:"version"`
	Description string    `db:"description"`
	AppliedAt   time.Time `db:"applied_at"`
}
