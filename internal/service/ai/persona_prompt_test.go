package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/model/persona"
)

func TestRomanianDate(t *testing.T) {
	day := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "duminică, 18 octombrie 2026", RomanianDate(day))
}

func TestRomanianSeason(t *testing.T) {
	cases := map[time.Month]string{
		time.January:   "iarnă",
		time.February:  "iarnă",
		time.March:     "primăvară",
		time.May:       "primăvară",
		time.June:      "vară",
		time.August:    "vară",
		time.September: "toamnă",
		time.November:  "toamnă",
		time.December:  "iarnă",
	}
	for month, want := range cases {
		assert.Equal(t, want, RomanianSeason(month), month.String())
	}
}

func TestResolveSubstitutesPlaceholders(t *testing.T) {
	now := time.Date(2026, 7, 3, 8, 0, 0, 0, time.UTC)
	pm := NewPersonaPromptManager(persona.NewMemoryStore(persona.Seed()), now)

	agri := pm.Resolve(call.ModeAgri)
	assert.Contains(t, agri, "Data curentă: vineri, 3 iulie 2026.")
	assert.Contains(t, agri, "Luna curentă: iulie. Sezonul: vară.")
	assert.NotContains(t, agri, "{{")

	dental := pm.Resolve(call.ModeDental)
	assert.Contains(t, dental, "OneVoice Dental")
}

func TestResolveUnsetFallsBackToDefault(t *testing.T) {
	pm := NewPersonaPromptManager(persona.NewMemoryStore(persona.Seed()), time.Now())

	assert.Equal(t, pm.Resolve(call.DefaultMode), pm.Resolve(call.ModeUnset))
	assert.Equal(t, pm.Greeting(call.DefaultMode), pm.Greeting(call.ModeUnset))
}

func TestResolveIsStableUntilRefresh(t *testing.T) {
	july := time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC)
	pm := NewPersonaPromptManager(persona.NewMemoryStore(persona.Seed()), july)

	first := pm.Resolve(call.ModeAgri)
	assert.Equal(t, first, pm.Resolve(call.ModeAgri))

	september := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	pm.Refresh(september)
	refreshed := pm.Resolve(call.ModeAgri)
	assert.Contains(t, refreshed, "Sezonul: toamnă.")
	assert.Equal(t, september, pm.ResolvedAt())
}

func TestGreeting(t *testing.T) {
	pm := NewPersonaPromptManager(persona.NewMemoryStore(persona.Seed()), time.Now())

	assert.Equal(t, "Bine ai venit la asistența dentară MedicalCor. Cum te pot ajuta?", pm.Greeting(call.ModeDental))
	assert.Equal(t, "Bine ai venit la asistența agricolă. Cu ce te pot ajuta?", pm.Greeting(call.ModeAgri))
}

func TestGetPromptTemplateMissing(t *testing.T) {
	pm := NewPersonaPromptManager(persona.NewMemoryStore(nil), time.Now())

	_, err := pm.GetPromptTemplate(call.ModeDental)
	require.Error(t, err)
	assert.Empty(t, pm.Resolve(call.ModeDental))
}
