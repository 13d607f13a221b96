package clipboard

import (
	"errors"
	"testing"
)

// memoryClipboard replaces the system clipboard in tests
type memoryClipboard struct {
	content string
	err     error
}

func newTestManager(mem *memoryClipboard) *Manager {
	return &Manager{
		write: func(s string) error {
			if mem.err != nil {
				return mem.err
			}
			mem.content = s
			return nil
		},
		read: func() (string, error) {
			return mem.content, mem.err
		},
	}
}

func TestNewManager(t *testing.T) {
	manager := NewManager()

	if manager == nil {
		t.Fatal("Expected manager to be created")
	}
	if manager.write == nil || manager.read == nil {
		t.Error("Expected robotgo-backed clipboard functions")
	}
}

func TestCopyPath(t *testing.T) {
	mem := &memoryClipboard{}
	manager := newTestManager(mem)

	if err := manager.CopyPath("/Users/me/Music/EzRecorder/recording_1.wav"); err != nil {
		t.Fatalf("CopyPath failed: %v", err)
	}

	content, err := manager.Content()
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if content != "/Users/me/Music/EzRecorder/recording_1.wav" {
		t.Errorf("Unexpected clipboard content %q", content)
	}
}

func TestCopyPath_Invalid(t *testing.T) {
	mem := &memoryClipboard{content: "untouched"}
	manager := newTestManager(mem)

	tests := []string{"", "   ", "relative/recording_1.wav"}
	for _, path := range tests {
		if err := manager.CopyPath(path); err == nil {
			t.Errorf("Expected error for %q", path)
		}
	}

	if mem.content != "untouched" {
		t.Errorf("Clipboard should be unchanged, got %q", mem.content)
	}
}

func TestCopyPath_WriteError(t *testing.T) {
	mem := &memoryClipboard{err: errors.New("no pasteboard")}
	manager := newTestManager(mem)

	if err := manager.CopyPath("/tmp/recording_1.wav"); err == nil {
		t.Error("Expected write error")
	}
	if _, err := manager.Content(); err == nil {
		t.Error("Expected read error")
	}
}

func TestCopyPaths(t *testing.T) {
	mem := &memoryClipboard{}
	manager := newTestManager(mem)

	if err := manager.CopyPaths([]string{"/a/recording_1.wav", "/a/recording_2.wav"}); err != nil {
		t.Fatalf("CopyPaths failed: %v", err)
	}
	if mem.content != "/a/recording_1.wav\n/a/recording_2.wav" {
		t.Errorf("Unexpected clipboard content %q", mem.content)
	}

	if err := manager.CopyPaths(nil); err == nil {
		t.Error("Expected error for no paths")
	}
	if err := manager.CopyPaths([]string{"/a/x.wav", "y.wav"}); err == nil {
		t.Error("Expected error for relative path")
	}
}
