package content

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/crypto"
	"github.com/DDT-TDD/quizdd-engine/internal/model"
	"github.com/DDT-TDD/quizdd-engine/internal/store/contentstore"
)

// Package is the self-describing content package the Loader installs
// (spec.md §4.6): a pack's questions reference their subject by name so
// install can resolve subject_name -> subject_id without the producer
// needing to know internal ids.
type Package struct {
	Version     string          `json:"version"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Subjects    []model.Subject `json:"subjects"`
	Questions   []PackQuestion  `json:"questions"`
	// Signature is base64-encoded ed25519 over the package's raw bytes
	// with this field cleared; absent in development/testing packs.
	Signature string `json:"signature,omitempty"`
}

// PackQuestion is one question entry inside a Package, naming its
// subject instead of an internal subject id.
type PackQuestion struct {
	SubjectName   string                `json:"subject_name"`
	Kind          model.QuestionKind    `json:"kind"`
	Stage         model.Stage           `json:"stage"`
	Content       model.QuestionContent `json:"content"`
	CorrectAnswer model.Answer          `json:"correct_answer"`
	Difficulty    int                   `json:"difficulty"`
	Tags          []string              `json:"tags,omitempty"`
	Assets        []PackAsset           `json:"assets,omitempty"`
}

// PackAsset is one asset entry inside a PackQuestion.
type PackAsset struct {
	Kind     model.AssetKind `json:"asset_kind"`
	FilePath string          `json:"file_path"`
	AltText  *string         `json:"alt_text,omitempty"`
	ByteSize *int64          `json:"byte_size,omitempty"`
	Checksum *string         `json:"checksum,omitempty"`
}

// Loader installs signed content packages into the Content Store
// (spec.md §4.6 "pack install").
type Loader struct {
	content contentstore.Repository
	gate    *crypto.Gate
}

// NewLoader builds a Loader bound to content and gate.
func NewLoader(content contentstore.Repository, gate *crypto.Gate) *Loader {
	return &Loader{content: content, gate: gate}
}

// Install verifies raw's signature (when present) then installs every
// subject and question it describes under a single transaction: per
// spec.md §4.6, a pack failing partway through (an unknown subject
// reference, an invalid question shape) aborts the whole install, and no
// subject or question from this call is left durably committed.
func (l *Loader) Install(ctx context.Context, raw []byte) error {
	pkg, signature, err := parsePackage(raw)
	if err != nil {
		return err
	}

	if signature != nil {
		unsigned, err := packageWithoutSignature(raw)
		if err != nil {
			return err
		}
		if l.gate == nil || !l.gate.VerifyPackageSignature(unsigned, signature) {
			return apperr.ContentVerification("content package signature verification failed")
		}
	}

	questions := make([]contentstore.PackQuestionInsert, 0, len(pkg.Questions))
	for _, pq := range pkg.Questions {
		assets := make([]model.Asset, 0, len(pq.Assets))
		for _, a := range pq.Assets {
			if err := validateAssetPath(a.FilePath); err != nil {
				return err
			}
			assets = append(assets, model.Asset{
				Kind:     a.Kind,
				FilePath: a.FilePath,
				AltText:  a.AltText,
				ByteSize: a.ByteSize,
				Checksum: a.Checksum,
			})
		}
		questions = append(questions, contentstore.PackQuestionInsert{
			SubjectName: pq.SubjectName,
			Question: model.Question{
				Stage:         pq.Stage,
				Kind:          pq.Kind,
				Content:       pq.Content,
				CorrectAnswer: pq.CorrectAnswer,
				Difficulty:    pq.Difficulty,
				Tags:          pq.Tags,
				Assets:        assets,
			},
		})
	}

	return l.content.InstallPackage(ctx, pkg.Subjects, questions)
}

func parsePackage(raw []byte) (Package, []byte, error) {
	var pkg Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return Package{}, nil, apperr.Serialisation("decoding content package", err)
	}
	if pkg.Signature == "" {
		return pkg, nil, nil
	}
	signature, err := base64.StdEncoding.DecodeString(pkg.Signature)
	if err != nil {
		return Package{}, nil, apperr.ContentVerification("content package signature is not valid base64")
	}
	return pkg, signature, nil
}

// packageWithoutSignature re-marshals raw with its "signature" field
// cleared, reproducing the exact bytes the signer verified over: the
// signature is computed over the package payload before that field is
// populated.
func packageWithoutSignature(raw []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperr.Serialisation("decoding content package", err)
	}
	delete(fields, "signature")
	unsigned, err := json.Marshal(fields)
	if err != nil {
		return nil, apperr.Serialisation("re-encoding content package", err)
	}
	return unsigned, nil
}

// validateAssetPath rejects any file_path that escapes the content root,
// guarding against a malicious pack planting files outside the asset
// directory via "../" traversal.
func validateAssetPath(filePath string) error {
	if filePath == "" {
		return apperr.InvalidInput("asset file_path must not be empty")
	}
	cleaned := path.Clean(strings.ReplaceAll(filePath, "\\", "/"))
	if strings.HasPrefix(cleaned, "../") || cleaned == ".." || path.IsAbs(cleaned) {
		return apperr.Security(fmt.Sprintf("asset file_path %q escapes the content root", filePath))
	}
	return nil
}
