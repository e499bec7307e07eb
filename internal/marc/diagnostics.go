package marc

import "fmt"

// Severity classifies a diagnostic.
type Severity int

const (
	// SeverityNotice is informational (e.g. a skipped foreign element).
	SeverityNotice Severity = iota
	// SeverityWarning marks a recoverable defect (e.g. a missing terminator).
	SeverityWarning
	// SeverityError marks data that could not be used.
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNotice:
		return "notice"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic is a non-fatal problem found while reading a record.
type Diagnostic struct {
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return d.Severity.String() + ": " + d.Message
}

// Diagnostics is an ordered list of problems reported alongside a result.
type Diagnostics []Diagnostic

// Add appends a formatted diagnostic.
func (d *Diagnostics) Add(sev Severity, format string, args ...any) {
	*d = append(*d, Diagnostic{Severity: sev, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any diagnostic has error severity.
func (d Diagnostics) HasErrors() bool {
	for _, diag := range d {
		if diag.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// Messages returns the diagnostic texts in order.
func (d Diagnostics) Messages() []string {
	msgs := make([]string, len(d))
	for i, diag := range d {
		msgs[i] = diag.String()
	}
	return msgs
}
