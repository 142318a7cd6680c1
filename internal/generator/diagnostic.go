package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Severity of a generation diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Diagnostic reports a recoverable condition met while generating a field. The
// value produced for the field is a best-effort substitute.
type Diagnostic struct {
	Path     string   `json:"path"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Err      error    `json:"-"`
}

// Is reports whether the diagnostic was caused by target.
func (d Diagnostic) Is(target error) bool {
	return errors.Is(d.Err, target)
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Path, d.Message)
}

// LogDiagnostics writes each diagnostic to logger at its severity.
func LogDiagnostics(logger *slog.Logger, diags []Diagnostic) {
	for _, d := range diags {
		level := slog.LevelInfo
		if d.Severity == SeverityWarning {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "generation diagnostic",
			slog.String("path", d.Path),
			slog.String("message", d.Message))
	}
}

func (s *Session) report(fc FieldContext, severity Severity, err error) {
	path := fc.Path
	if path == "" {
		path = fc.FieldName
	}
	s.diags = append(s.diags, Diagnostic{Path: path, Severity: severity, Message: err.Error(), Err: err})
}
