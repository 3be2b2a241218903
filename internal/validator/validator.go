// Package validator performs a lightweight syntax check on submitted
// content. It returns ordered diagnostic strings; an empty slice means no
// problems were found. Diagnostics are purely informational — the service
// layer never blocks a mutation on them.
package validator

import "fmt"

// Validator is the contract the service layer depends on. The concrete
// checker below is a heuristic; a future implementation could call out to
// a real compiler frontend behind the same interface.
type Validator interface {
	Validate(content string) []string
}

// Syntax is a pure in-process Validator that checks bracket balance and
// string termination, reporting one diagnostic per finding with a
// one-based line number.
type Syntax struct{}

// NewSyntax returns a ready-to-use syntax checker.
func NewSyntax() *Syntax {
	return &Syntax{}
}

var _ Validator = (*Syntax)(nil)

type openBracket struct {
	ch   byte
	line int
}

// Validate scans content once, tracking bracket nesting and string
// literals. Brackets inside strings, character literals, and // or /* */
// comments are ignored.
func (s *Syntax) Validate(content string) []string {
	diags := []string{}
	var stack []openBracket

	line := 1
	var (
		inString  bool // inside "..."
		inChar    bool // inside '...'
		inLineCmt bool // inside //
		inBlkCmt  bool // inside /* */
		strLine   int  // line where the current literal opened
	)

	for i := 0; i < len(content); i++ {
		c := content[i]

		if c == '\n' {
			if inString {
				diags = append(diags, fmt.Sprintf("Line %d: unterminated string literal", strLine))
				inString = false
			}
			if inChar {
				diags = append(diags, fmt.Sprintf("Line %d: unterminated character literal", strLine))
				inChar = false
			}
			inLineCmt = false
			line++
			continue
		}

		switch {
		case inLineCmt:
			continue
		case inBlkCmt:
			if c == '*' && i+1 < len(content) && content[i+1] == '/' {
				inBlkCmt = false
				i++
			}
			continue
		case inString:
			if c == '\\' {
				i++ // skip the escaped character
			} else if c == '"' {
				inString = false
			}
			continue
		case inChar:
			if c == '\\' {
				i++
			} else if c == '\'' {
				inChar = false
			}
			continue
		}

		switch c {
		case '/':
			if i+1 < len(content) {
				switch content[i+1] {
				case '/':
					inLineCmt = true
					i++
				case '*':
					inBlkCmt = true
					i++
				}
			}
		case '"':
			inString = true
			strLine = line
		case '\'':
			inChar = true
			strLine = line
		case '(', '[', '{':
			stack = append(stack, openBracket{ch: c, line: line})
		case ')', ']', '}':
			if len(stack) == 0 {
				diags = append(diags, fmt.Sprintf("Line %d: unexpected %q", line, string(c)))
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if closerFor(top.ch) != c {
				diags = append(diags, fmt.Sprintf("Line %d: %q closed by %q",
					line, string(top.ch), string(c)))
			}
		}
	}

	if inString {
		diags = append(diags, fmt.Sprintf("Line %d: unterminated string literal", strLine))
	}
	if inChar {
		diags = append(diags, fmt.Sprintf("Line %d: unterminated character literal", strLine))
	}
	if inBlkCmt {
		diags = append(diags, "unterminated block comment")
	}
	for _, open := range stack {
		diags = append(diags, fmt.Sprintf("Line %d: unclosed %q", open.line, string(open.ch)))
	}

	return diags
}

func closerFor(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}
