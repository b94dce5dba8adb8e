package service

import (
	"context"
	"strings"
	"testing"

	"github.com/pinvault/backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests use the iteration floor directly; determinism is independent of the
// iteration count as long as it is held constant.
func newDeriver() *PasswordDeriver {
	return NewPasswordDeriver("test-secret-test-secret", 100000, 2)
}

func TestDeriveDeterministic(t *testing.T) {
	d := newDeriver()
	ctx := context.Background()

	rules, err := ResolveRules("github", nil, nil)
	require.NoError(t, err)

	first, err := d.Derive(ctx, "correct-horse-battery", "github", rules)
	require.NoError(t, err)
	second, err := d.Derive(ctx, "correct-horse-battery", "github", rules)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 20)
}

func TestDerivePlatformChangesOutput(t *testing.T) {
	d := newDeriver()
	ctx := context.Background()

	rules, err := ResolveRules("default", nil, nil)
	require.NoError(t, err)

	github, err := d.Derive(ctx, "correct-horse-battery", "github", rules)
	require.NoError(t, err)
	gitlab, err := d.Derive(ctx, "correct-horse-battery", "gitlab", rules)
	require.NoError(t, err)

	assert.NotEqual(t, github, gitlab)
}

func TestDerivePlatformCaseInsensitive(t *testing.T) {
	d := newDeriver()
	ctx := context.Background()

	rules, err := ResolveRules("github", nil, nil)
	require.NoError(t, err)

	lower, err := d.Derive(ctx, "correct-horse-battery", "github", rules)
	require.NoError(t, err)
	upper, err := d.Derive(ctx, "correct-horse-battery", "GitHub", rules)
	require.NoError(t, err)

	assert.Equal(t, lower, upper)
}

func TestDeriveMasterChangesOutput(t *testing.T) {
	d := newDeriver()
	ctx := context.Background()

	rules, err := ResolveRules("github", nil, nil)
	require.NoError(t, err)

	a, err := d.Derive(ctx, "correct-horse-battery", "github", rules)
	require.NoError(t, err)
	b, err := d.Derive(ctx, "correct-horse-batterz", "github", rules)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDeriveServerSecretChangesOutput(t *testing.T) {
	ctx := context.Background()
	rules, err := ResolveRules("github", nil, nil)
	require.NoError(t, err)

	a, err := NewPasswordDeriver("secret-one-secret-one", 100000, 1).Derive(ctx, "correct-horse-battery", "github", rules)
	require.NoError(t, err)
	b, err := NewPasswordDeriver("secret-two-secret-two", 100000, 1).Derive(ctx, "correct-horse-battery", "github", rules)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDeriveValidation(t *testing.T) {
	d := newDeriver()
	ctx := context.Background()

	rules, err := ResolveRules("github", nil, nil)
	require.NoError(t, err)

	_, err = d.Derive(ctx, "short", "github", rules)
	assert.ErrorIs(t, err, ErrMasterTooShort)

	_, err = d.Derive(ctx, "correct-horse-battery", "  ", rules)
	assert.ErrorIs(t, err, ErrPlatformRequired)
}

func TestResolveRules(t *testing.T) {
	rules, err := ResolveRules("github", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DerivationRules{Length: 20, RequireSymbols: true, ExcludeAmbiguous: false}, rules)

	// Unknown platforms fall back to the default entry.
	rules, err = ResolveRules("some-obscure-site", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 16, rules.Length)

	// Overrides merge on top of the platform entry.
	length := 32
	noSymbols := false
	rules, err = ResolveRules("github", &length, &model.PasswordRules{RequireSymbols: &noSymbols})
	require.NoError(t, err)
	assert.Equal(t, DerivationRules{Length: 32, RequireSymbols: false, ExcludeAmbiguous: false}, rules)

	tooShort := 4
	_, err = ResolveRules("github", &tooShort, nil)
	assert.ErrorIs(t, err, ErrLengthOutOfRange)

	tooLong := 200
	_, err = ResolveRules("github", &tooLong, nil)
	assert.ErrorIs(t, err, ErrLengthOutOfRange)
}

func TestDeriveCharsetRules(t *testing.T) {
	d := newDeriver()
	ctx := context.Background()

	noSymbols := false
	exclude := true
	rules, err := ResolveRules("default", nil, &model.PasswordRules{RequireSymbols: &noSymbols, ExcludeAmbiguous: &exclude})
	require.NoError(t, err)

	password, err := d.Derive(ctx, "correct-horse-battery", "example", rules)
	require.NoError(t, err)

	assert.False(t, strings.ContainsAny(password, symbolChars))
	assert.False(t, strings.ContainsAny(password, ambiguousChars))
}

func TestScoreStrengthBands(t *testing.T) {
	strong := ScoreStrength("Abcdefghijkl3456!@#$")
	assert.Equal(t, "strong", strong.Label)
	assert.GreaterOrEqual(t, strong.Score, 80)

	medium := ScoreStrength("Abcdef99")
	assert.Equal(t, "medium", medium.Label)

	weak := ScoreStrength("abcdef")
	assert.Equal(t, "weak", weak.Label)
	assert.Less(t, weak.Score, 60)
}

func TestScoreStrengthCapped(t *testing.T) {
	s := ScoreStrength("Abcdefghijklmnop3456!@#$xyz")
	assert.Equal(t, 100, s.Score)
}
