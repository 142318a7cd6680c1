package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "ofmock")
	p := writeFile(t, "name: ${SAMPLE_NAME}\nport: 80\n")

	s := sample{}
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "ofmock" || s.Port != 80 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	p := writeFile(t, "name: x\n")

	s := sample{Port: 9}
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 9 {
		t.Errorf("port = %d, want default 9", s.Port)
	}
}

func TestLoad_Validation(t *testing.T) {
	p := writeFile(t, "port: 0\n")

	err := Load(p, &sample{})
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeFile(t, "port: [\n")
	if err := Load(p, &sample{Port: 1}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	s := sample{Port: 5}
	if err := LoadOptional(missing, &s); err != nil {
		t.Fatalf("missing file should keep defaults: %v", err)
	}
	if err := LoadOptional(missing, &sample{}); err == nil {
		t.Fatal("defaults are still validated")
	}
	if err := Load(missing, &s); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load missing err = %v", err)
	}
}
