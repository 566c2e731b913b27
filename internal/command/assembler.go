// Package command builds the shell command line for an invocation of the
// external text-generation tool.
//
// The assembler performs two jobs: expanding filename-modifier tokens in
// the user's raw arguments, and extracting a selected line range from the
// host buffer as the process's input payload. It never interprets the
// tool's own argument grammar, and it performs no shell-metacharacter
// escaping beyond token expansion; quoting is the caller's concern.
package command

import (
	"strings"
)

// Token syntax for filename modifiers.
const (
	// markerChar introduces a filename-modifier token.
	markerChar = '%'
	// escapeChar preceding a marker leaves it literal.
	escapeChar = '\\'
	// modifierSep separates the marker from a modifier letter.
	modifierSep = ':'
)

// recognized modifier letters following "%:". Anything else passes
// through unchanged.
const modifierLetters = "phtre"

// BufferSource supplies buffer context from the host. Implementations
// belong to the host; the assembler only consumes them.
type BufferSource interface {
	// CurrentFilePath returns the path of the buffer's file, or "" when
	// the buffer has no file.
	CurrentFilePath() string

	// GetLines returns the buffer lines from start to end inclusive,
	// both 1-based. start never exceeds end.
	GetLines(start, end int) ([]string, error)

	// ExpandModifier expands a filename-modifier token ("%", "%:p", ...)
	// to its value for the current buffer.
	ExpandModifier(token string) string
}

// Selection is a pair of 1-based buffer line numbers delimiting
// user-selected text. Start and End may arrive in either order.
type Selection struct {
	Start int
	End   int
}

// Normalize returns the selection with Start <= End.
func (s Selection) Normalize() Selection {
	if s.Start > s.End {
		return Selection{Start: s.End, End: s.Start}
	}
	return s
}

// Valid reports whether both line numbers are usable (1-based).
func (s Selection) Valid() bool {
	return s.Start >= 1 && s.End >= 1
}

// Spec is the immutable result of assembling one invocation.
type Spec struct {
	// Command is the final shell command line, tool name included.
	Command string
	// Input is the text piped to the process's stdin.
	Input string
	// HasInput distinguishes an empty payload from no payload.
	HasInput bool
	// Stream indicates output goes to the display sink rather than being
	// returned for direct insertion.
	Stream bool
}

// Assembler builds Specs for a fixed external tool.
type Assembler struct {
	tool string
}

// NewAssembler creates an assembler for the named external tool.
func NewAssembler(tool string) *Assembler {
	return &Assembler{tool: tool}
}

// Tool returns the external tool name the assembler prefixes.
func (a *Assembler) Tool() string {
	return a.tool
}

// Assemble produces a Spec from raw user arguments, buffer context, and
// an optional selection. It raises no errors: malformed arguments pass
// through for the external tool to reject, and an unusable selection
// simply yields no input payload.
func (a *Assembler) Assemble(raw string, src BufferSource, sel *Selection, stream bool) Spec {
	args := expandTokens(raw, src)

	cmd := a.tool
	if args != "" {
		cmd = a.tool + " " + args
	}

	spec := Spec{
		Command: cmd,
		Stream:  stream,
	}

	if input, ok := extractSelection(src, sel); ok {
		spec.Input = input
		spec.HasInput = true
	}
	return spec
}

// expandTokens scans raw for filename-modifier tokens and substitutes
// them through the buffer source. An escaped marker is emitted literally
// with the escape stripped; "%:" followed by an unrecognized letter
// passes through unchanged.
func expandTokens(raw string, src BufferSource) string {
	if src == nil || !strings.ContainsRune(raw, markerChar) {
		return raw
	}

	var out strings.Builder
	out.Grow(len(raw))

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if c == escapeChar && i+1 < len(raw) && raw[i+1] == markerChar {
			out.WriteByte(markerChar)
			i++
			continue
		}

		if c != markerChar {
			out.WriteByte(c)
			continue
		}

		// "%:x" with a recognized modifier letter is a two-part token;
		// otherwise the bare marker stands alone.
		if i+2 < len(raw) && raw[i+1] == modifierSep {
			letter := raw[i+2]
			if strings.IndexByte(modifierLetters, letter) >= 0 {
				out.WriteString(src.ExpandModifier(string(raw[i : i+3])))
				i += 2
				continue
			}
			// Unrecognized modifier: pass the whole token through.
			out.WriteString(raw[i : i+3])
			i += 2
			continue
		}

		out.WriteString(src.ExpandModifier(string(markerChar)))
	}

	return out.String()
}

// extractSelection pulls the selected lines from the buffer and joins
// them with newlines. Any problem reading the range means no payload.
func extractSelection(src BufferSource, sel *Selection) (string, bool) {
	if src == nil || sel == nil || !sel.Valid() {
		return "", false
	}

	n := sel.Normalize()
	lines, err := src.GetLines(n.Start, n.End)
	if err != nil {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}
