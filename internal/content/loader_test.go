package content

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
	"github.com/DDT-TDD/quizdd-engine/internal/crypto"
)

func samplePackageJSON(t *testing.T) []byte {
	t.Helper()
	pkg := map[string]any{
		"version": "1.0.0",
		"name":    "geography-extra",
		"subjects": []map[string]any{
			{"name": "geography", "display_name": "Geography"},
		},
		"questions": []map[string]any{
			{
				"subject_name": "geography",
				"kind":         "multiple_choice",
				"stage":        "KS1",
				"content":      map[string]any{"text": "What is the capital of Wales?", "options": []string{"Cardiff", "Swansea", "Newport", "Bangor"}},
				"correct_answer": map[string]any{"kind": "text", "text": "Cardiff"},
				"difficulty":   1,
			},
		},
	}
	data, err := json.Marshal(pkg)
	require.NoError(t, err)
	return data
}

func TestInstallUnsignedPackageSucceedsWithoutGate(t *testing.T) {
	repo := newFakeRepository()
	loader := NewLoader(repo, nil)

	require.NoError(t, loader.Install(context.Background(), samplePackageJSON(t)))

	stats, err := repo.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalQuestions)
	assert.Equal(t, 1, stats.BySubject["geography"])
}

func TestInstallRejectsUnknownSubjectReference(t *testing.T) {
	repo := newFakeRepository()
	loader := NewLoader(repo, nil)

	raw := []byte(`{
		"version": "1.0.0", "name": "bad-pack",
		"subjects": [],
		"questions": [{"subject_name": "astrology", "kind": "multiple_choice", "stage": "KS1",
			"content": {"text": "?", "options": ["a","b"]}, "correct_answer": {"kind": "text", "text": "a"}, "difficulty": 1}]
	}`)

	err := loader.Install(context.Background(), raw)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindContentManagement, ae.Kind)
}

func TestInstallRejectsAssetPathTraversal(t *testing.T) {
	repo := newFakeRepository()
	loader := NewLoader(repo, nil)

	raw := []byte(`{
		"version": "1.0.0", "name": "bad-asset-pack",
		"subjects": [{"name": "geography", "display_name": "Geography"}],
		"questions": [{"subject_name": "geography", "kind": "multiple_choice", "stage": "KS1",
			"content": {"text": "?", "options": ["a","b"]}, "correct_answer": {"kind": "text", "text": "a"}, "difficulty": 1,
			"assets": [{"asset_kind": "image", "file_path": "../../etc/passwd"}]}]
	}`)

	err := loader.Install(context.Background(), raw)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindSecurity, ae.Kind)
}

func TestInstallVerifiesSignatureWhenPresent(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	gate := crypto.NewGate([]ed25519.PublicKey{pub}, make([]byte, 32))

	unsigned := samplePackageJSON(t)
	signature := crypto.Sign(priv, unsigned)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(unsigned, &fields))
	sigJSON, err := json.Marshal(base64.StdEncoding.EncodeToString(signature))
	require.NoError(t, err)
	fields["signature"] = sigJSON
	signedRaw, err := json.Marshal(fields)
	require.NoError(t, err)

	repo := newFakeRepository()
	loader := NewLoader(repo, gate)
	require.NoError(t, loader.Install(context.Background(), signedRaw))

	stats, err := repo.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalQuestions)
}

func TestInstallRejectsTamperedSignedPackage(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	gate := crypto.NewGate([]ed25519.PublicKey{pub}, make([]byte, 32))

	unsigned := samplePackageJSON(t)
	signature := crypto.Sign(priv, unsigned)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(unsigned, &fields))
	fields["name"] = json.RawMessage(`"tampered-name"`)
	sigJSON, err := json.Marshal(base64.StdEncoding.EncodeToString(signature))
	require.NoError(t, err)
	fields["signature"] = sigJSON
	tamperedRaw, err := json.Marshal(fields)
	require.NoError(t, err)

	repo := newFakeRepository()
	loader := NewLoader(repo, gate)
	err = loader.Install(context.Background(), tamperedRaw)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindContentVerification, ae.Kind)
}
