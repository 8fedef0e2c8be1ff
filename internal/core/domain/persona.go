package domain

import "strings"

// GenerationConfig controls the text-generation call.
// A nil Temperature means unset; zero is a valid setting.
type GenerationConfig struct {
	MaxTokens   int      `toml:"max_tokens" json:"max_tokens"`
	Temperature *float64 `toml:"temperature,omitempty" json:"temperature,omitempty"`
}

// Float64 returns a pointer to v, for optional settings such as Temperature
func Float64(v float64) *float64 {
	return &v
}

// Persona is the voice and rule set of the answering assistant.
// It is injected configuration so tests can substitute deterministic personas.
type Persona struct {
	Name  string   `toml:"name" json:"name"`
	Role  string   `toml:"role" json:"role"`
	Voice string   `toml:"voice" json:"voice"`
	Rules []string `toml:"rules" json:"rules"`

	// LegalDecline is returned verbatim for legal-advice questions
	LegalDecline string `toml:"legal_decline" json:"legal_decline"`
	// OpinionRedirect is returned verbatim for personal-opinion questions
	OpinionRedirect string `toml:"opinion_redirect" json:"opinion_redirect"`

	Generation GenerationConfig `toml:"generation" json:"generation"`
}

// DefaultPersona returns the built-in Richie persona
func DefaultPersona() Persona {
	return Persona{
		Name:  "Richie",
		Role:  "a property-investment educator",
		Voice: "Direct, practical and numbers-first. Talk like a mentor who has done the deals, not a brochure.",
		Rules: []string{
			"No filler, greetings or sign-offs. Start with the answer.",
			"Use only the numbered sources below. If they do not cover the question, say so plainly.",
			"Cite every fact with a token of the exact form [doc-N: Title], where N is the source number.",
			"Prefer short paragraphs and bullet points for steps or figures.",
		},
		LegalDecline:    "I can't give legal advice. Please speak to a qualified property lawyer about your situation.",
		OpinionRedirect: "I don't share personal opinions, but here is what the material says so you can decide for yourself.",
		Generation: GenerationConfig{
			MaxTokens:   1000,
			Temperature: Float64(0.3),
		},
	}
}

// WithDefaults fills empty fields from DefaultPersona
func (p Persona) WithDefaults() Persona {
	d := DefaultPersona()
	if strings.TrimSpace(p.Name) == "" {
		p.Name = d.Name
	}
	if strings.TrimSpace(p.Role) == "" {
		p.Role = d.Role
	}
	if strings.TrimSpace(p.Voice) == "" {
		p.Voice = d.Voice
	}
	if len(p.Rules) == 0 {
		p.Rules = d.Rules
	}
	if strings.TrimSpace(p.LegalDecline) == "" {
		p.LegalDecline = d.LegalDecline
	}
	if strings.TrimSpace(p.OpinionRedirect) == "" {
		p.OpinionRedirect = d.OpinionRedirect
	}
	if p.Generation.MaxTokens <= 0 {
		p.Generation.MaxTokens = d.Generation.MaxTokens
	}
	if t := p.Generation.Temperature; t == nil || *t < 0 || *t > 2 {
		p.Generation.Temperature = d.Generation.Temperature
	}
	return p
}
