package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/diogo/geminivoice/internal/models"
)

// Persona is a named system instruction, optionally tied to a model
type Persona struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	SystemInstruction string `json:"system_instruction"`
	Model             string `json:"model,omitempty"` // Preferred model (optional)
}

// PersonaConfig stores all personas
type PersonaConfig struct {
	Personas []Persona `json:"personas"`
}

// DefaultPersonas returns pre-configured personas
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Name:              "assistant",
			Description:       "Friendly conversational assistant",
			SystemInstruction: models.DefaultSystemInstruction,
		},
		{
			Name:        "concise",
			Description: "Short answers that read well aloud",
			SystemInstruction: `You are a voice assistant. Answer in one to three short sentences.
Avoid markdown, lists, code blocks and URLs because replies are read aloud.`,
		},
		{
			Name:        "tutor",
			Description: "Patient language and conversation tutor",
			SystemInstruction: `You are a patient conversation tutor. When replying:
- Keep a natural spoken rhythm
- Gently point out mistakes in the user's phrasing
- Ask a follow-up question to keep the conversation going`,
		},
	}
}

// GetPersonasPath returns the path to the personas file
func GetPersonasPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "personas.json"), nil
}

// LoadPersonas loads the persona configuration, merged over the defaults
func LoadPersonas() (*PersonaConfig, error) {
	path, err := GetPersonasPath()
	if err != nil {
		return nil, err
	}
	return LoadPersonasFrom(path)
}

// LoadPersonasFrom loads personas from a specific file
func LoadPersonasFrom(path string) (*PersonaConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PersonaConfig{Personas: DefaultPersonas()}, nil
		}
		return nil, fmt.Errorf("failed to read personas: %w", err)
	}

	var pc PersonaConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("failed to parse personas: %w", err)
	}

	pc.Personas = mergePersonas(DefaultPersonas(), pc.Personas)
	return &pc, nil
}

// loadUserPersonas reads only the personas stored in the file at path
func loadUserPersonas(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read personas: %w", err)
	}

	var pc PersonaConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("failed to parse personas: %w", err)
	}
	return pc.Personas, nil
}

// savePersonasTo writes the user personas to path
func savePersonasTo(path string, personas []Persona) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(PersonaConfig{Personas: personas}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal personas: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write personas: %w", err)
	}
	return nil
}

// AddPersonaTo stores p in the personas file at path. A name that already
// exists, built-in or not, is rejected.
func AddPersonaTo(path string, p Persona) error {
	if p.Name == "" {
		return fmt.Errorf("persona name cannot be empty")
	}

	pc, err := LoadPersonasFrom(path)
	if err != nil {
		return err
	}
	if _, err := pc.Find(p.Name); err == nil {
		return fmt.Errorf("persona '%s' already exists", p.Name)
	}

	user, err := loadUserPersonas(path)
	if err != nil {
		return err
	}
	return savePersonasTo(path, append(user, p))
}

// DeletePersonaFrom removes a user persona from the file at path. Built-in
// personas cannot be deleted; deleting an override restores the built-in.
func DeletePersonaFrom(path, name string) error {
	user, err := loadUserPersonas(path)
	if err != nil {
		return err
	}

	kept := make([]Persona, 0, len(user))
	for _, p := range user {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(user) {
		for _, p := range DefaultPersonas() {
			if p.Name == name {
				return fmt.Errorf("persona '%s' is built in and cannot be deleted", name)
			}
		}
		return fmt.Errorf("persona '%s' not found", name)
	}
	return savePersonasTo(path, kept)
}

// Find returns a persona by name
func (pc *PersonaConfig) Find(name string) (*Persona, error) {
	for i := range pc.Personas {
		if pc.Personas[i].Name == name {
			p := pc.Personas[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("persona '%s' not found", name)
}

// GetPersona returns a persona by name
func GetPersona(name string) (*Persona, error) {
	pc, err := LoadPersonas()
	if err != nil {
		return nil, err
	}
	return pc.Find(name)
}

// mergePersonas overlays user personas on the defaults; a user persona with a
// default's name replaces it.
func mergePersonas(defaults, user []Persona) []Persona {
	result := make([]Persona, 0, len(defaults)+len(user))
	index := make(map[string]int, len(defaults))

	for _, p := range defaults {
		index[p.Name] = len(result)
		result = append(result, p)
	}
	for _, p := range user {
		if i, ok := index[p.Name]; ok {
			result[i] = p
			continue
		}
		index[p.Name] = len(result)
		result = append(result, p)
	}
	return result
}

// ResolveSystemInstruction picks the system instruction for a session: a named
// persona (argument, then config) wins over the configured instruction, which
// wins over the default. The persona's preferred model is returned alongside.
func ResolveSystemInstruction(cfg Config, personaName string) (string, string, error) {
	if personaName == "" {
		personaName = cfg.Persona
	}
	if personaName == "" {
		if cfg.SystemInstruction != "" {
			return cfg.SystemInstruction, "", nil
		}
		return models.DefaultSystemInstruction, "", nil
	}

	persona, err := GetPersona(personaName)
	if err != nil {
		return "", "", err
	}
	return persona.SystemInstruction, persona.Model, nil
}
