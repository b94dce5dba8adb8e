package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"

	"github.com/pinvault/backend/internal/model"
	"golang.org/x/crypto/pbkdf2"
)

const (
	minMasterLength  = 8
	minDerivedLength = 8
	maxDerivedLength = 64

	lowerChars     = "abcdefghijklmnopqrstuvwxyz"
	upperChars     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars     = "0123456789"
	symbolChars    = "!@#$%^&*()-_=+[]{};:,.<>?"
	ambiguousChars = "0O1lI|`"

	strongThreshold = 80
	mediumThreshold = 60
)

var (
	ErrMasterTooShort   = errors.New("master password too short")
	ErrPlatformRequired = errors.New("platform is required")
	ErrLengthOutOfRange = errors.New("password length out of range")
)

// DerivationRules are the resolved per-platform generation rules.
type DerivationRules struct {
	Length           int
	RequireSymbols   bool
	ExcludeAmbiguous bool
}

// platformRules holds per-platform defaults; "default" is the fallback
// entry. Request overrides merge on top of the matched entry.
var platformRules = map[string]DerivationRules{
	"default":   {Length: 16, RequireSymbols: true, ExcludeAmbiguous: false},
	"github":    {Length: 20, RequireSymbols: true, ExcludeAmbiguous: false},
	"google":    {Length: 16, RequireSymbols: true, ExcludeAmbiguous: false},
	"aws":       {Length: 24, RequireSymbols: true, ExcludeAmbiguous: true},
	"microsoft": {Length: 16, RequireSymbols: true, ExcludeAmbiguous: false},
	"banking":   {Length: 12, RequireSymbols: false, ExcludeAmbiguous: true},
}

// PasswordDeriver maps a PBKDF2 keystream onto a character set. Same inputs,
// same password: there is no randomness and no stored state. A bounded
// semaphore keeps the iteration-heavy KDF from monopolizing request handlers.
type PasswordDeriver struct {
	serverSecret []byte
	iterations   int
	sem          chan struct{}
}

func NewPasswordDeriver(serverSecret string, iterations, maxWorkers int) *PasswordDeriver {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &PasswordDeriver{
		serverSecret: []byte(serverSecret),
		iterations:   iterations,
		sem:          make(chan struct{}, maxWorkers),
	}
}

// ResolveRules merges request overrides onto the platform defaults.
func ResolveRules(platform string, length *int, overrides *model.PasswordRules) (DerivationRules, error) {
	rules, ok := platformRules[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		rules = platformRules["default"]
	}

	if length != nil {
		rules.Length = *length
	}
	if overrides != nil {
		if overrides.RequireSymbols != nil {
			rules.RequireSymbols = *overrides.RequireSymbols
		}
		if overrides.ExcludeAmbiguous != nil {
			rules.ExcludeAmbiguous = *overrides.ExcludeAmbiguous
		}
	}

	if rules.Length < minDerivedLength || rules.Length > maxDerivedLength {
		return DerivationRules{}, ErrLengthOutOfRange
	}
	return rules, nil
}

// Derive produces the deterministic password for (master, platform, rules).
func (d *PasswordDeriver) Derive(ctx context.Context, master, platform string, rules DerivationRules) (string, error) {
	if len(master) < minMasterLength {
		return "", ErrMasterTooShort
	}
	if strings.TrimSpace(platform) == "" {
		return "", ErrPlatformRequired
	}

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-d.sem }()

	salt := sha256.Sum256([]byte(strings.ToLower(platform) + ":" + string(d.serverSecret)))
	keystream := pbkdf2.Key([]byte(master), salt[:], d.iterations, rules.Length, sha256.New)

	charset := buildCharset(rules)
	out := make([]byte, rules.Length)
	for i, b := range keystream {
		out[i] = charset[int(b)%len(charset)]
	}
	return string(out), nil
}

func buildCharset(rules DerivationRules) string {
	charset := lowerChars + upperChars + digitChars
	if rules.RequireSymbols {
		charset += symbolChars
	}
	if rules.ExcludeAmbiguous {
		var b strings.Builder
		for _, c := range charset {
			if !strings.ContainsRune(ambiguousChars, c) {
				b.WriteRune(c)
			}
		}
		charset = b.String()
	}
	return charset
}

// ScoreStrength grades a password 0-100: 20 points per category (length>=16,
// lower, upper, digit, symbol) plus small bonuses at 20 and 24 characters.
// Informational only; it never gates generation.
func ScoreStrength(password string) model.PasswordStrength {
	score := 0
	if len(password) >= 16 {
		score += 20
	}
	if strings.ContainsAny(password, lowerChars) {
		score += 20
	}
	if strings.ContainsAny(password, upperChars) {
		score += 20
	}
	if strings.ContainsAny(password, digitChars) {
		score += 20
	}
	if strings.ContainsAny(password, symbolChars) {
		score += 20
	}
	if len(password) >= 20 {
		score += 5
	}
	if len(password) >= 24 {
		score += 5
	}
	if score > 100 {
		score = 100
	}

	label := "weak"
	switch {
	case score >= strongThreshold:
		label = "strong"
	case score >= mediumThreshold:
		label = "medium"
	}
	return model.PasswordStrength{Score: score, Label: label}
}
