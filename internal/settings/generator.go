// generator.go provides the settings template written by medbuddy init.

package settings

import (
	"bytes"
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// fieldComments are inserted above the matching key in the generated file.
var fieldComments = map[string]string{
	"backend":  "file keeps one JSON file per collection; sqlite keeps one database",
	"interval": "background sync interval for medbuddy serve, 0s disables it",
	"format":   "console or json; set file = '...' to log to a rotated file",
}

// Generate returns the TOML content written by init: the defaults, with the
// data directory and backend overridden when not empty.
func Generate(dataDir string, backend BackendType) (string, error) {
	s := DefaultSettings()
	s.DataDir = dataDir
	if backend != "" {
		s.Backend = backend
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return "", fmt.Errorf("encode template: %w", err)
	}
	return SchemaComment + insertComments(buf.String(), fieldComments), nil
}

// insertComments inserts "# comment" before the first line assigning each key.
func insertComments(content string, comments map[string]string) string {
	lines := strings.Split(content, "\n")
	result := make([]string, 0, len(lines)+len(comments))
	done := make(map[string]bool, len(comments))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		for key, comment := range comments {
			if done[key] || !strings.HasPrefix(trimmed, key+" ") {
				continue
			}
			result = append(result, "# "+comment)
			done[key] = true
		}
		result = append(result, line)
	}
	return strings.Join(result, "\n")
}
