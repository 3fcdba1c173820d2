package model

import (
	"encoding/json"
	"fmt"
)

// AnswerKind discriminates the Answer tagged union on the wire.
type AnswerKind string

const (
	AnswerKindText        AnswerKind = "text"
	AnswerKindMultiple    AnswerKind = "multiple"
	AnswerKindCoordinates AnswerKind = "coordinates"
	AnswerKindMapping     AnswerKind = "mapping"
)

// Point is a 2D coordinate used by Hotspot answers.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Answer is a tagged union over the four shapes a submitted or correct
// answer can take (spec.md §3, §9): a single string, a set of strings,
// a list of coordinates, or a label->value mapping. Exactly one of the
// value fields is populated, selected by Kind.
type Answer struct {
	Kind        AnswerKind
	Text        string
	Multiple    []string
	Coordinates []Point
	Mapping     map[string]string
}

// NewTextAnswer builds a text Answer.
func NewTextAnswer(s string) Answer { return Answer{Kind: AnswerKindText, Text: s} }

// NewMultipleAnswer builds a multiple-selection Answer.
func NewMultipleAnswer(values []string) Answer { return Answer{Kind: AnswerKindMultiple, Multiple: values} }

// NewCoordinatesAnswer builds a coordinate-list Answer (Hotspot).
func NewCoordinatesAnswer(points []Point) Answer {
	return Answer{Kind: AnswerKindCoordinates, Coordinates: points}
}

// NewMappingAnswer builds a label->value Answer (DragDrop).
func NewMappingAnswer(m map[string]string) Answer { return Answer{Kind: AnswerKindMapping, Mapping: m} }

type answerWire struct {
	Kind        AnswerKind        `json:"kind"`
	Text        string            `json:"text,omitempty"`
	Multiple    []string          `json:"multiple,omitempty"`
	Coordinates []Point           `json:"coordinates,omitempty"`
	Mapping     map[string]string `json:"mapping,omitempty"`
}

// MarshalJSON encodes the Answer using an explicit "kind" discriminator
// so a reader never has to guess the shape from which fields are present.
func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(answerWire{
		Kind:        a.Kind,
		Text:        a.Text,
		Multiple:    a.Multiple,
		Coordinates: a.Coordinates,
		Mapping:     a.Mapping,
	})
}

// UnmarshalJSON decodes an Answer by its "kind" discriminator and
// rejects payloads that mix or omit the matching value field.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var w answerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case AnswerKindText:
		*a = Answer{Kind: AnswerKindText, Text: w.Text}
	case AnswerKindMultiple:
		*a = Answer{Kind: AnswerKindMultiple, Multiple: w.Multiple}
	case AnswerKindCoordinates:
		*a = Answer{Kind: AnswerKindCoordinates, Coordinates: w.Coordinates}
	case AnswerKindMapping:
		*a = Answer{Kind: AnswerKindMapping, Mapping: w.Mapping}
	default:
		return fmt.Errorf("model: unknown answer kind %q", w.Kind)
	}
	return nil
}

// ExpectedAnswerKind returns the Answer shape a QuestionKind requires.
func ExpectedAnswerKind(qk QuestionKind) AnswerKind {
	switch qk {
	case KindMultipleChoice, KindFillBlank, KindStoryQuiz:
		return AnswerKindText
	case KindHotspot:
		return AnswerKindCoordinates
	case KindDragDrop:
		return AnswerKindMapping
	default:
		return AnswerKindText
	}
}
