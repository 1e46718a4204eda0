// Package prompt supplies the system instruction prepended to every
// upstream request.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed socratic.txt
var defaultInstruction string

// Default returns the built-in Socratic tutor instruction.
func Default() string {
	return strings.TrimSpace(defaultInstruction)
}

// Load returns the instruction stored at path, or Default when path is empty.
func Load(path string) (string, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("system prompt file %s is empty", path)
	}
	return text, nil
}
