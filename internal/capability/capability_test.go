package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AcceptsVocabularyWithNormalization(t *testing.T) {
	got, err := Parse("  Logo-Design ")
	require.NoError(t, err)
	assert.Equal(t, LogoDesign, got)
}

func TestParse_RejectsUnknownTag(t *testing.T) {
	_, err := Parse("quantum-basket-weaving")
	assert.Error(t, err)
}

func TestIsValid_CoversWholeVocabulary(t *testing.T) {
	for _, c := range All() {
		assert.True(t, c.IsValid(), "vocabulary entry %s must validate", c)
	}
	assert.False(t, Capability("not-a-thing").IsValid())
}

func TestDetect_MatchesKeywordsInVocabularyOrder(t *testing.T) {
	caps := Detect("I need a LOGO and someone to write the website copy")
	require.NotEmpty(t, caps)
	assert.Contains(t, caps, LogoDesign)
	assert.Contains(t, caps, Copywriting)

	// Order follows the vocabulary, not keyword position in the message.
	assert.Equal(t, LogoDesign, caps[0])
}

func TestDetect_NoMatchReturnsEmpty(t *testing.T) {
	assert.Empty(t, Detect("zzz qqq"))
}

func TestDetect_AvoidsSubstringFalsePositives(t *testing.T) {
	// "rapid" must not trigger web-development, "build" alone neither.
	caps := Detect("rapid capital gains")
	assert.NotContains(t, caps, WebDevelopment)
}

func TestEstimatedCompletion_KnownAndGeneric(t *testing.T) {
	est := EstimatedCompletion(LogoDesign)
	assert.NotEmpty(t, est.Label)
	assert.Greater(t, est.Typical, time.Duration(0))

	generic := EstimatedCompletion(Capability("unknown"))
	assert.Equal(t, "3-5 days", generic.Label)
}
