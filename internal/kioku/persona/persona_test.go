package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_Valid(t *testing.T) {
	doc := `
name: Ada
qualities:
  - patient
  - loves puns
temperature: 0.4
`
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Name != "Ada" || p.DisplayName != "Ada" {
		t.Errorf("name=%q display=%q", p.Name, p.DisplayName)
	}
	if p.QualityList() != "patient, loves puns" {
		t.Errorf("QualityList = %q", p.QualityList())
	}
	if p.TemperatureOr(1) != 0.4 || p.ReplyMaxTokens != 400 {
		t.Errorf("temperature=%v replyMaxTokens=%d", p.TemperatureOr(1), p.ReplyMaxTokens)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"missing name", "qualities: [kind]", "name must not be empty"},
		{"blank quality", "name: Ada\nqualities: ['  ']", "qualities[0]"},
		{"temperature range", "name: Ada\ntemperature: 3", "temperature"},
		{"negative max tokens", "name: Ada\nreplyMaxTokens: -1", "replyMaxTokens"},
		{"not yaml", "name: [unclosed", "persona parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	p, err := Load("")
	if err != nil || p.Name != Default().Name {
		t.Fatalf("Load('') = %+v, %v", p, err)
	}

	path := filepath.Join(t.TempDir(), "persona.yaml")
	os.WriteFile(path, []byte("name: Bo\ndisplayName: bo-bot\n"), 0o600)
	p, err = Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.DisplayName != "bo-bot" {
		t.Errorf("DisplayName = %q", p.DisplayName)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("Default persona invalid: %v", err)
	}
}
