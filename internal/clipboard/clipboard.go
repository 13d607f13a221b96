package clipboard

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-vgo/robotgo"
)

// Manager copies recording paths to the system clipboard
type Manager struct {
	write func(string) error
	read  func() (string, error)
}

// NewManager creates a clipboard manager backed by robotgo
func NewManager() *Manager {
	return &Manager{
		write: robotgo.WriteAll,
		read:  robotgo.ReadAll,
	}
}

// CopyPath puts an absolute file path on the clipboard
func (m *Manager) CopyPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}

	if err := m.write(path); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// CopyPaths puts several paths on the clipboard, one per line
func (m *Manager) CopyPaths(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no paths to copy")
	}
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			return fmt.Errorf("path must be absolute: %s", p)
		}
	}

	if err := m.write(strings.Join(paths, "\n")); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// Content returns the current clipboard content
func (m *Manager) Content() (string, error) {
	content, err := m.read()
	if err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	return content, nil
}
