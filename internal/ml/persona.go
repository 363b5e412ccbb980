package ml

import (
	"fmt"
	"strings"
)

// Persona selects the coaching voice used in every prompt
type Persona string

// Presets. Each one changes the tone of the advice text and how strictly the
// model is told to score; the response schema never changes.
const (
	// PersonaGentle encourages, points out one improvement at a time and
	// scores generously.
	PersonaGentle Persona = "gentle"
	// PersonaStrict is blunt about excess calories, fat and purine and
	// reserves scores above 80 for well balanced meals.
	PersonaStrict Persona = "strict"
	// PersonaCheerful is upbeat and playful, like a sports coach.
	PersonaCheerful Persona = "cheerful"
	// PersonaClinical writes like a registered dietitian: neutral, numeric,
	// referencing daily intake guidelines.
	PersonaClinical Persona = "clinical"
)

// DefaultPersona is used when none is configured
const DefaultPersona = PersonaGentle

type personaText struct {
	voice   string
	scoring string
}

var personas = map[Persona]personaText{
	PersonaGentle: {
		voice:   "You are a kind, encouraging nutritionist. Praise what went well first, then suggest at most one gentle improvement.",
		scoring: "Score generously: an ordinary home-cooked meal should land between 60 and 80.",
	},
	PersonaStrict: {
		voice:   "You are a strict nutrition coach. Be direct about excess calories, fat, sugar and purine, without insults.",
		scoring: "Score strictly: only well balanced, moderate meals may score above 80.",
	},
	PersonaCheerful: {
		voice:   "You are an upbeat sports coach who keeps the user motivated with energetic, playful comments.",
		scoring: "Score fairly and celebrate anything above 70.",
	},
	PersonaClinical: {
		voice:   "You are a registered dietitian. Write neutrally and refer to typical adult daily intake guidelines with numbers.",
		scoring: "Score on nutritional balance alone, ignoring taste or effort.",
	},
}

// ParsePersona validates a configured persona name. An empty name selects the default.
func ParsePersona(s string) (Persona, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPersona, nil
	}
	p := Persona(s)
	if _, ok := personas[p]; !ok {
		return "", fmt.Errorf("unknown persona %q", s)
	}
	return p, nil
}

// Personas returns every available preset
func Personas() []Persona {
	return []Persona{PersonaGentle, PersonaStrict, PersonaCheerful, PersonaClinical}
}
