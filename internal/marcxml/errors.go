package marcxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// Problem is a single parser complaint with its position.
type Problem struct {
	Line    int
	Column  int
	Code    string
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("[%d:%d] Error %s: %s", p.Line, p.Column, p.Code, p.Message)
}

// SyntaxError aggregates the problems found in a malformed document.
type SyntaxError struct {
	Problems []Problem
}

func (e *SyntaxError) Error() string {
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, p.String())
	}
	return "marcxml: invalid document\n" + strings.Join(lines, "\n")
}

// IsSyntaxError reports whether err is a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

func newSyntaxError(dec *xml.Decoder, err error) *SyntaxError {
	line, col := dec.InputPos()
	p := Problem{Line: line, Column: col, Code: "io", Message: err.Error()}

	var xse *xml.SyntaxError
	switch {
	case errors.As(err, &xse):
		p.Code = "syntax"
		p.Message = xse.Msg
		if xse.Line > 0 && xse.Line != line {
			p.Line, p.Column = xse.Line, 0
		}
	case strings.Contains(err.Error(), "charset"):
		p.Code = "encoding"
	}
	return &SyntaxError{Problems: []Problem{p}}
}
