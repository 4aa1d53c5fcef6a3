package presentation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads a presentation YAML file.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and parses the file. Environment references like ${VAR} are
// expanded before parsing.
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read presentation file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return File{}, fmt.Errorf("failed to parse presentation yaml: %w", err)
	}
	return f, nil
}

// LoadStyle builds a Style from the file at path, or from the defaults when
// path is empty.
func LoadStyle(path string) (*Style, error) {
	if path == "" {
		return NewStyle(File{}), nil
	}
	f, err := NewLoader(path).Load()
	if err != nil {
		return nil, err
	}
	return NewStyle(f), nil
}
