package content

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/logger"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
	"github.com/DDT-TDD/quizdd-engine/internal/store/contentstore"
)

//go:embed seed/*.json
var seedFixtures embed.FS

// canonicalSize is how many questions each baked-in category should have
// once fully seeded. times_tables is generated, not fixture-backed, so it
// is sized by generateTimesTables rather than listed here.
var canonicalSize = map[string]int{
	"mathematics":       7,
	"geography":         6,
	"english":           6,
	"science":           6,
	"general_knowledge": 6,
	"flags_capitals":    6,
}

type fixtureFile struct {
	Subject     string            `json:"subject"`
	DisplayName string            `json:"display_name"`
	IconPath    *string           `json:"icon_path,omitempty"`
	ColorScheme *string           `json:"color_scheme,omitempty"`
	Description *string           `json:"description,omitempty"`
	Questions   []fixtureQuestion `json:"questions"`
}

type fixtureQuestion struct {
	Stage         model.Stage         `json:"stage"`
	Kind          model.QuestionKind  `json:"kind"`
	Difficulty    int                 `json:"difficulty"`
	Content       model.QuestionContent `json:"content"`
	CorrectAnswer model.Answer        `json:"correct_answer"`
	Tags          []string            `json:"tags,omitempty"`
}

// Seeder installs the canonical question bank into the Content Store
// (spec.md §4.6). It is idempotent: seeding an already-populated store
// only reconciles categories whose canonical size has grown.
type Seeder struct {
	content contentstore.Repository
	log     *logger.Logger
}

// NewSeeder builds a Seeder bound to content.
func NewSeeder(content contentstore.Repository, log *logger.Logger) *Seeder {
	return &Seeder{content: content, log: log}
}

// Seed installs the baked-in bank from empty, or reconciles per-subject
// counts against canonicalSize when the store already holds questions.
func (s *Seeder) Seed(ctx context.Context) error {
	stats, err := s.content.Statistics(ctx)
	if err != nil {
		return err
	}

	if stats.TotalQuestions == 0 {
		for _, subject := range model.CanonicalSubjects {
			if err := s.seedSubject(ctx, subject); err != nil {
				return err
			}
		}
		return nil
	}

	for subject, want := range canonicalSize {
		if stats.BySubject[subject] < want {
			if err := s.reseedSubject(ctx, subject, stats.BySubject[subject], want); err != nil {
				return err
			}
		}
	}
	if stats.BySubject["times_tables"] < timesTablesCanonicalCount {
		if err := s.reseedSubject(ctx, "times_tables", stats.BySubject["times_tables"], timesTablesCanonicalCount); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) reseedSubject(ctx context.Context, subject string, before, after int) error {
	if err := s.content.DeleteQuestionsBySubject(ctx, subject); err != nil {
		return err
	}
	if s.log != nil {
		s.log.WithFields(map[string]interface{}{
			"event":            "content_migration",
			"subject":          subject,
			"questions_before": before,
			"questions_after":  after,
		}).Info("reseeding canonical content category at larger size")
	}
	return s.seedSubject(ctx, subject)
}

func (s *Seeder) seedSubject(ctx context.Context, subject string) error {
	if subject == "times_tables" {
		return s.installQuestions(ctx, "times_tables", "Times Tables", nil, nil, nil, generateTimesTables())
	}

	data, err := seedFixtures.ReadFile(fmt.Sprintf("seed/%s.json", subject))
	if err != nil {
		return apperr.Internal(fmt.Sprintf("no baked-in fixture for subject %q", subject), err)
	}
	var fixture fixtureFile
	if err := json.Unmarshal(data, &fixture); err != nil {
		return apperr.Serialisation("decoding seed fixture "+subject, err)
	}

	questions := make([]model.Question, 0, len(fixture.Questions))
	for _, fq := range fixture.Questions {
		questions = append(questions, model.Question{
			Stage:         fq.Stage,
			Kind:          fq.Kind,
			Difficulty:    fq.Difficulty,
			Content:       fq.Content,
			CorrectAnswer: fq.CorrectAnswer,
			Tags:          fq.Tags,
		})
	}
	return s.installQuestions(ctx, fixture.Subject, fixture.DisplayName, fixture.IconPath, fixture.ColorScheme, fixture.Description, questions)
}

func (s *Seeder) installQuestions(ctx context.Context, subjectName, displayName string, iconPath, colorScheme, description *string, questions []model.Question) error {
	subjectID, err := s.content.UpsertSubject(ctx, model.Subject{
		Name:        subjectName,
		DisplayName: displayName,
		IconPath:    iconPath,
		ColorScheme: colorScheme,
		Description: description,
	})
	if err != nil {
		return err
	}
	for _, q := range questions {
		q.SubjectID = subjectID
		if _, err := s.content.InsertQuestion(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
