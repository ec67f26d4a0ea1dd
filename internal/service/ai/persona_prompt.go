package ai

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/onevoice/ivr/backend/internal/model/call"
	"github.com/onevoice/ivr/backend/internal/model/persona"
)

// PromptTemplate is a persona with its instruction resolved for a point in time.
type PromptTemplate struct {
	Persona      persona.Persona
	SystemPrompt string
}

// PersonaPromptManager resolves persona instructions for each call mode.
// Templates are resolved when the manager is built and again on every Refresh.
type PersonaPromptManager struct {
	personas persona.Store

	mu         sync.RWMutex
	templates  map[call.Mode]*PromptTemplate
	resolvedAt time.Time
}

// NewPersonaPromptManager resolves every persona template against now.
func NewPersonaPromptManager(personas persona.Store, now time.Time) *PersonaPromptManager {
	manager := &PersonaPromptManager{personas: personas}
	manager.Refresh(now)
	return manager
}

// Refresh re-resolves date, month and season placeholders.
func (pm *PersonaPromptManager) Refresh(now time.Time) {
	templates := make(map[call.Mode]*PromptTemplate)
	for _, p := range pm.personas.List() {
		templates[p.Mode] = &PromptTemplate{
			Persona:      p,
			SystemPrompt: renderInstruction(p.Instruction, now),
		}
	}

	pm.mu.Lock()
	pm.templates = templates
	pm.resolvedAt = now
	pm.mu.Unlock()
}

// GetPromptTemplate returns the resolved template for mode.
func (pm *PersonaPromptManager) GetPromptTemplate(mode call.Mode) (*PromptTemplate, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	template, exists := pm.templates[mode]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for mode: %q", mode)
	}
	return template, nil
}

// Resolve returns the system instruction for mode. An unset mode resolves as the default mode.
func (pm *PersonaPromptManager) Resolve(mode call.Mode) string {
	template, err := pm.GetPromptTemplate(effectiveMode(mode))
	if err != nil {
		return ""
	}
	return template.SystemPrompt
}

// Greeting returns the welcome line spoken after a menu choice.
func (pm *PersonaPromptManager) Greeting(mode call.Mode) string {
	template, err := pm.GetPromptTemplate(effectiveMode(mode))
	if err != nil {
		return ""
	}
	return template.Persona.Greeting
}

// ResolvedAt reports when the templates were last resolved.
func (pm *PersonaPromptManager) ResolvedAt() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.resolvedAt
}

func effectiveMode(mode call.Mode) call.Mode {
	if !mode.Valid() {
		return call.DefaultMode
	}
	return mode
}

func renderInstruction(text string, now time.Time) string {
	return strings.NewReplacer(
		"{{date}}", RomanianDate(now),
		"{{month}}", RomanianMonth(now.Month()),
		"{{season}}", RomanianSeason(now.Month()),
	).Replace(text)
}

var romanianMonths = [...]string{
	"ianuarie", "februarie", "martie", "aprilie", "mai", "iunie",
	"iulie", "august", "septembrie", "octombrie", "noiembrie", "decembrie",
}

var romanianWeekdays = [...]string{
	"duminică", "luni", "marți", "miercuri", "joi", "vineri", "sâmbătă",
}

// RomanianMonth returns the lower-case Romanian month name.
func RomanianMonth(m time.Month) string {
	return romanianMonths[m-1]
}

// RomanianSeason maps a month to its meteorological season.
func RomanianSeason(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "iarnă"
	case time.March, time.April, time.May:
		return "primăvară"
	case time.June, time.July, time.August:
		return "vară"
	default:
		return "toamnă"
	}
}

// RomanianDate formats t like "duminică, 18 octombrie 2026".
func RomanianDate(t time.Time) string {
	return fmt.Sprintf("%s, %d %s %d", romanianWeekdays[t.Weekday()], t.Day(), RomanianMonth(t.Month()), t.Year())
}
