package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileBuffer is a BufferSource backed by an ordinary file. It gives
// non-editor hosts (the CLI, tests) the same buffer context an editor
// would provide: a current file path for modifier expansion and numbered
// lines for selection extraction.
type FileBuffer struct {
	path  string
	lines []string
}

// NewFileBuffer creates a FileBuffer for path with the given content
// lines. The file does not need to exist; path is only used for
// modifier expansion.
func NewFileBuffer(path string, lines []string) *FileBuffer {
	return &FileBuffer{path: path, lines: lines}
}

// OpenFileBuffer reads path and returns a FileBuffer over its lines.
func OpenFileBuffer(path string) (*FileBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read buffer file: %w", err)
	}
	content := strings.TrimSuffix(string(data), "\n")
	var lines []string
	if content != "" || len(data) > 0 {
		lines = strings.Split(content, "\n")
	}
	return &FileBuffer{path: path, lines: lines}, nil
}

// CurrentFilePath returns the buffer's file path.
func (b *FileBuffer) CurrentFilePath() string {
	return b.path
}

// GetLines returns lines start..end inclusive, 1-based. Lines outside
// the buffer are an error.
func (b *FileBuffer) GetLines(start, end int) ([]string, error) {
	if start < 1 || end > len(b.lines) || start > end {
		return nil, fmt.Errorf("line range %d-%d outside buffer of %d lines", start, end, len(b.lines))
	}
	out := make([]string, end-start+1)
	copy(out, b.lines[start-1:end])
	return out, nil
}

// ExpandModifier expands a filename-modifier token against the buffer's
// path, following the usual editor conventions:
//
//	%     relative path as given
//	%:p   absolute path
//	%:h   directory part
//	%:t   final path component
//	%:r   path with the extension removed
//	%:e   extension without the dot
func (b *FileBuffer) ExpandModifier(token string) string {
	switch token {
	case "%":
		return b.path
	case "%:p":
		abs, err := filepath.Abs(b.path)
		if err != nil {
			return b.path
		}
		return abs
	case "%:h":
		return filepath.Dir(b.path)
	case "%:t":
		return filepath.Base(b.path)
	case "%:r":
		return strings.TrimSuffix(b.path, filepath.Ext(b.path))
	case "%:e":
		return strings.TrimPrefix(filepath.Ext(b.path), ".")
	default:
		return token
	}
}
