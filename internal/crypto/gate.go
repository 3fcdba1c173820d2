package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sessionTokenSubject and sessionTokenInfo key the envelope used to seal
// parental session tokens; they are fixed, not derived from any
// per-session value, since the gate keeps no server-side state at all.
var (
	sessionTokenSubject = []byte("parental-session-token")
	sessionTokenInfo    = "quizdd.parental.session.v1"
)

// allowedFeatures is the closed set of sensitive operations a parental
// session token can authorise (spec.md §4.3).
var allowedFeatures = map[string]bool{
	"custom_mix_creation": true,
	"settings":            true,
	"content_updates":     true,
	"profile_management":  true,
}

// Gate is the Crypto Gate (spec.md §4.3): verifies content-package
// signatures, seals/opens short opaque tokens, and issues/checks
// parental arithmetic challenges. It holds no per-challenge state —
// everything needed to check a challenge or token travels with it.
type Gate struct {
	trustedSigningKeys []ed25519.PublicKey
	sessionTokenKey    []byte // 32 bytes
}

// NewGate builds a Gate from the configured trusted signing keys and
// session-token master key.
func NewGate(trustedSigningKeys []ed25519.PublicKey, sessionTokenKey []byte) *Gate {
	return &Gate{trustedSigningKeys: trustedSigningKeys, sessionTokenKey: sessionTokenKey}
}

// VerifyPackageSignature verifies a content package's signature against
// the gate's trusted keys.
func (g *Gate) VerifyPackageSignature(data, signature []byte) bool {
	return VerifySignature(g.trustedSigningKeys, data, signature)
}

// Seal symmetrically encrypts a short payload (spec.md §4.3's `seal`).
func (g *Gate) Seal(plaintext []byte) ([]byte, error) {
	return EncryptEnvelope(g.sessionTokenKey, sessionTokenSubject, sessionTokenInfo, plaintext)
}

// Open decrypts a payload produced by Seal, detecting tampering.
func (g *Gate) Open(ciphertext []byte) ([]byte, error) {
	return DecryptEnvelope(g.sessionTokenKey, sessionTokenSubject, sessionTokenInfo, ciphertext)
}

// Challenge is a parental arithmetic puzzle. It carries its own
// expected answer and expiry: the gate keeps no server-side challenge
// state, so re-deriving correctness from the question text is the only
// way check_challenge can work.
type Challenge struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	ExpectedAnswer int       `json:"expected_answer"`
	ExpiresAt      time.Time `json:"expires_at"`
}

var challengeOperators = []byte{'+', '-', 0xD7, 0xF7} // '+','-','×','÷'

// IssueChallenge picks one of the four arithmetic families
// deterministically from the current wall time modulo 4, with operand
// ranges chosen so the answer is always a small positive integer.
func IssueChallenge() (Challenge, error) {
	now := time.Now()
	op := rune(challengeOperators[int(now.Unix()%4)])

	a, b, expected, err := randomOperands(op)
	if err != nil {
		return Challenge{}, err
	}

	return Challenge{
		ID:             uuid.NewString(),
		Question:       fmt.Sprintf("What is %d %c %d?", a, op, b),
		ExpectedAnswer: expected,
		ExpiresAt:      now.Add(5 * time.Minute),
	}, nil
}

func randomOperands(op rune) (a, b, expected int, err error) {
	switch op {
	case '+':
		a, err = randInt(1, 20)
		if err != nil {
			return
		}
		b, err = randInt(1, 20)
		if err != nil {
			return
		}
		expected = a + b
	case '-':
		b, err = randInt(1, 20)
		if err != nil {
			return
		}
		extra, err2 := randInt(1, 10)
		if err2 != nil {
			err = err2
			return
		}
		a = b + extra
		expected = a - b
	case 0xD7: // ×
		a, err = randInt(1, 12)
		if err != nil {
			return
		}
		b, err = randInt(1, 12)
		if err != nil {
			return
		}
		expected = a * b
	case 0xF7: // ÷
		b, err = randInt(1, 12)
		if err != nil {
			return
		}
		expected, err = randInt(1, 12)
		if err != nil {
			return
		}
		a = b * expected
	default:
		err = fmt.Errorf("crypto: unknown challenge operator %q", op)
	}
	return
}

func randInt(lo, hi int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(hi-lo+1)))
	if err != nil {
		return 0, err
	}
	return lo + int(n.Int64()), nil
}

var challengePattern = regexp.MustCompile(`(-?\d+)\s*([+\-×xX*÷/])\s*(-?\d+)`)

// CheckChallenge re-derives the expected answer from question_text
// (the only authoritative state) and compares it to userInput parsed
// as a non-negative integer.
func CheckChallenge(questionText, userInput string) bool {
	m := challengePattern.FindStringSubmatch(questionText)
	if m == nil {
		return false
	}
	a, err1 := strconv.Atoi(m[1])
	b, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil {
		return false
	}

	var expected int
	switch m[2] {
	case "+":
		expected = a + b
	case "-":
		expected = a - b
	case "×", "x", "X", "*":
		expected = a * b
	case "÷", "/":
		if b == 0 {
			return false
		}
		expected = a / b
	default:
		return false
	}

	given, err := strconv.Atoi(strings.TrimSpace(userInput))
	if err != nil || given < 0 {
		return false
	}
	return given == expected
}

// sessionTokenPayload is the plaintext Seal wraps. Sticking it behind a
// named type (rather than a bare timestamp string) leaves room for a
// future field — e.g. the profile that opened the parental session —
// without changing the token's wire shape.
type sessionTokenPayload struct {
	IssuedAtUnix int64 `json:"issued_at_unix"`
}

const sessionTokenValidity = time.Hour

// IssueSessionToken wraps the current wall-clock timestamp in Seal,
// producing an opaque token that authorises sensitive operations for
// the next hour.
func (g *Gate) IssueSessionToken() (string, error) {
	payload, err := json.Marshal(sessionTokenPayload{IssuedAtUnix: time.Now().Unix()})
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	sealed, err := g.Seal(payload)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	return string(sealed), nil
}

// CheckSessionToken opens token, reads its timestamp, and accepts it
// if it is younger than an hour and feature is one of the closed set
// of sensitive operations a parental session may authorise.
func (g *Gate) CheckSessionToken(token, feature string) bool {
	if !allowedFeatures[feature] {
		return false
	}
	raw, err := g.Open([]byte(token))
	if err != nil {
		return false
	}
	var payload sessionTokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}
	issuedAt := time.Unix(payload.IssuedAtUnix, 0)
	return time.Since(issuedAt) < sessionTokenValidity
}
