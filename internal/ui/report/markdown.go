package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InjectDiagram replaces the block between
// <!-- archgraph:<marker>:start --> and <!-- archgraph:<marker>:end --> in a
// Markdown file. The file is rewritten through a temp file and rename.
func InjectDiagram(filePath, marker, diagram string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read markdown file %q: %w", filePath, err)
	}
	next, err := ReplaceBetweenMarkers(string(content), marker, diagram)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".archgraph-inject-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", filePath, err)
	}
	_, writeErr := tmp.WriteString(next)
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil {
		writeErr = os.Rename(tmp.Name(), filePath)
	}
	if writeErr != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace markdown file %q: %w", filePath, writeErr)
	}
	return nil
}

// ReplaceBetweenMarkers swaps the text between the start and end markers of
// marker. Each must appear exactly once, start first. Line endings follow the
// document.
func ReplaceBetweenMarkers(content, marker, replacement string) (string, error) {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return "", fmt.Errorf("markdown marker must not be empty")
	}
	start := "<!-- archgraph:" + marker + ":start -->"
	end := "<!-- archgraph:" + marker + ":end -->"
	if strings.Count(content, start) != 1 || strings.Count(content, end) != 1 {
		return "", fmt.Errorf("markdown marker %q must appear exactly once for start and end", marker)
	}

	before, rest, _ := strings.Cut(content, start)
	if !strings.Contains(rest, end) {
		return "", fmt.Errorf("markdown marker %q ends before it starts", marker)
	}
	_, after, _ := strings.Cut(rest, end)

	nl := "\n"
	if strings.Contains(content, "\r\n") {
		nl = "\r\n"
	}
	body := strings.ReplaceAll(strings.TrimRight(replacement, "\r\n"), "\n", nl)
	if nl == "\r\n" {
		body = strings.ReplaceAll(body, "\r\r\n", "\r\n")
	}
	return before + start + nl + body + nl + end + after, nil
}

// Fence wraps a rendered diagram in a Markdown code block tagged with format.
func Fence(format, diagram string) string {
	return "```" + format + "\n" + strings.TrimRight(diagram, "\n") + "\n```"
}
