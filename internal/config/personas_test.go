package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/diogo/geminivoice/internal/models"
)

func TestDefaultPersonas_AllHaveNames(t *testing.T) {
	personas := DefaultPersonas()

	if len(personas) == 0 {
		t.Fatal("expected default personas")
	}
	for i, p := range personas {
		if p.Name == "" {
			t.Errorf("persona %d has empty name", i)
		}
		if p.Description == "" {
			t.Errorf("persona %s has empty description", p.Name)
		}
		if p.SystemInstruction == "" {
			t.Errorf("persona %s has empty system instruction", p.Name)
		}
	}
}

func TestLoadPersonasFrom_MissingFileReturnsDefaults(t *testing.T) {
	pc, err := LoadPersonasFrom(filepath.Join(t.TempDir(), "personas.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pc.Personas) != len(DefaultPersonas()) {
		t.Errorf("got %d personas, want %d", len(pc.Personas), len(DefaultPersonas()))
	}
}

func TestLoadPersonasFrom_MergesUserPersonas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.json")
	data := `{"personas":[
		{"name":"concise","description":"mine","system_instruction":"Be brief."},
		{"name":"pirate","description":"arr","system_instruction":"Talk like a pirate.","model":"gemini-2.5-pro"}
	]}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	pc, err := LoadPersonasFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pc.Personas) != len(DefaultPersonas())+1 {
		t.Fatalf("got %d personas", len(pc.Personas))
	}

	concise, err := pc.Find("concise")
	if err != nil {
		t.Fatal(err)
	}
	if concise.SystemInstruction != "Be brief." {
		t.Errorf("user persona should replace default, got %q", concise.SystemInstruction)
	}

	pirate, err := pc.Find("pirate")
	if err != nil {
		t.Fatal(err)
	}
	if pirate.Model != "gemini-2.5-pro" {
		t.Errorf("Model = %q", pirate.Model)
	}
}

func TestLoadPersonasFrom_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPersonasFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestPersonaConfigFind_NotFound(t *testing.T) {
	pc := &PersonaConfig{Personas: DefaultPersonas()}
	if _, err := pc.Find("missing"); err == nil {
		t.Error("expected not found error")
	}
}

func TestResolveSystemInstruction(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	instruction, model, err := ResolveSystemInstruction(DefaultConfig(), "")
	if err != nil {
		t.Fatal(err)
	}
	if instruction != models.DefaultSystemInstruction || model != "" {
		t.Errorf("default resolution = %q, %q", instruction, model)
	}

	cfg := DefaultConfig()
	cfg.SystemInstruction = "Custom."
	instruction, _, _ = ResolveSystemInstruction(cfg, "")
	if instruction != "Custom." {
		t.Errorf("configured instruction not used: %q", instruction)
	}

	instruction, _, err = ResolveSystemInstruction(cfg, "concise")
	if err != nil {
		t.Fatal(err)
	}
	if instruction == "Custom." {
		t.Error("persona should win over configured instruction")
	}

	if _, _, err := ResolveSystemInstruction(cfg, "nope"); err == nil {
		t.Error("expected unknown persona error")
	}
}

func TestAddPersonaTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "personas.json")

	if err := AddPersonaTo(path, Persona{Name: "pirate", Description: "arr", SystemInstruction: "Talk like a pirate."}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pc, err := LoadPersonasFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pc.Find("pirate"); err != nil {
		t.Errorf("added persona not found: %v", err)
	}
	if len(pc.Personas) != len(DefaultPersonas())+1 {
		t.Errorf("got %d personas", len(pc.Personas))
	}

	if err := AddPersonaTo(path, Persona{Name: "pirate"}); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
	if err := AddPersonaTo(path, Persona{Name: "concise"}); err == nil {
		t.Error("expected built-in name to be rejected")
	}
	if err := AddPersonaTo(path, Persona{}); err == nil {
		t.Error("expected empty name to be rejected")
	}
}

func TestDeletePersonaFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.json")
	if err := AddPersonaTo(path, Persona{Name: "pirate", SystemInstruction: "Arr."}); err != nil {
		t.Fatal(err)
	}

	if err := DeletePersonaFrom(path, "pirate"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pc, err := LoadPersonasFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pc.Find("pirate"); err == nil {
		t.Error("expected persona to be gone")
	}

	if err := DeletePersonaFrom(path, "assistant"); err == nil {
		t.Error("expected built-in persona to be protected")
	}
	if err := DeletePersonaFrom(path, "missing"); err == nil {
		t.Error("expected unknown persona error")
	}
}
