package tray

import (
	"testing"
	"time"

	"github.com/yok-tottii/EzRecorder/internal/i18n"
)

// readyManager returns a manager that records icon and tooltip updates
// instead of touching the real status bar
func readyManager(t *testing.T, lang i18n.Language) (*Manager, *[]string, *int) {
	t.Helper()

	translator, err := i18n.NewDefaultTranslator(lang)
	if err != nil {
		t.Fatalf("Failed to create translator: %v", err)
	}

	m := NewManager(Config{Translator: translator})
	tooltips := &[]string{}
	icons := new(int)
	m.setTooltip = func(s string) { *tooltips = append(*tooltips, s) }
	m.setIcon = func([]byte) { *icons++ }
	m.ready = true
	return m, tooltips, icons
}

func TestNewManager(t *testing.T) {
	toggleCalled := false
	quitCalled := false

	manager := NewManager(Config{
		OnToggleRecord: func() {
			toggleCalled = true
		},
		OnQuit: func() {
			quitCalled = true
		},
	})

	if manager == nil {
		t.Fatal("Expected manager to be created")
	}

	if manager.GetState() != StateIdle {
		t.Errorf("Expected initial state to be StateIdle, got %v", manager.state)
	}

	call(manager.onToggleRecord)
	if !toggleCalled {
		t.Error("Expected onToggleRecord callback to be called")
	}

	call(manager.onQuit)
	if !quitCalled {
		t.Error("Expected onQuit callback to be called")
	}

	// Nil callbacks are ignored
	call(manager.onOpen)
	call(manager.onCopyLatest)
}

func TestSetStateBeforeReady(t *testing.T) {
	manager := NewManager(Config{})
	calls := 0
	manager.setIcon = func([]byte) { calls++ }
	manager.setTooltip = func(string) { calls++ }

	manager.SetState(StateRecording)

	if manager.GetState() != StateRecording {
		t.Errorf("Expected state to be StateRecording, got %v", manager.GetState())
	}
	if calls != 0 {
		t.Errorf("Expected no status bar updates before ready, got %d", calls)
	}
}

func TestSetStateUpdatesTooltip(t *testing.T) {
	tests := []struct {
		lang  i18n.Language
		state State
		want  string
	}{
		{i18n.LanguageEnglish, StateIdle, "EzRecorder - Idle"},
		{i18n.LanguageEnglish, StateRecording, "EzRecorder - Recording"},
		{i18n.LanguageEnglish, StatePlaying, "EzRecorder - Playing"},
		{i18n.LanguageJapanese, StateRecording, "EzRecorder - 録音中"},
	}

	for _, tt := range tests {
		manager, tooltips, icons := readyManager(t, tt.lang)

		manager.SetState(tt.state)

		if *icons != 1 {
			t.Errorf("Expected 1 icon update, got %d", *icons)
		}
		if len(*tooltips) != 1 || (*tooltips)[0] != tt.want {
			t.Errorf("Expected tooltip %q, got %v", tt.want, *tooltips)
		}
	}
}

func TestRelabelAfterLanguageChange(t *testing.T) {
	manager, tooltips, _ := readyManager(t, i18n.LanguageJapanese)
	manager.SetState(StateIdle)

	manager.translator.SetLanguage(i18n.LanguageEnglish)
	manager.stateMutex.Lock()
	manager.updateIcon()
	manager.stateMutex.Unlock()

	last := (*tooltips)[len(*tooltips)-1]
	if last != "EzRecorder - Idle" {
		t.Errorf("Expected English tooltip, got %q", last)
	}
}

func TestIconFunctions(t *testing.T) {
	idleIcon := getIdleFallback()
	recordingIcon := getRecordingFallback()
	playingIcon := getPlayingFallback()

	for name, icon := range map[string][]byte{"idle": idleIcon, "recording": recordingIcon, "playing": playingIcon} {
		if len(icon) < 8 || string(icon[1:4]) != "PNG" {
			t.Errorf("Expected %s icon to be a PNG", name)
		}
	}

	if string(idleIcon) == string(recordingIcon) {
		t.Error("Expected idle and recording icons to be different")
	}
	if string(recordingIcon) == string(playingIcon) {
		t.Error("Expected recording and playing icons to be different")
	}
}

func TestStatusKey(t *testing.T) {
	if got := statusKey(StateIdle); got != "status.idle" {
		t.Errorf("Expected status.idle, got %s", got)
	}
	if got := statusKey(StateRecording); got != "status.recording" {
		t.Errorf("Expected status.recording, got %s", got)
	}
	if got := statusKey(StatePlaying); got != "status.playing" {
		t.Errorf("Expected status.playing, got %s", got)
	}
}

func TestStateConstants(t *testing.T) {
	if StateIdle != 0 {
		t.Errorf("Expected StateIdle to be 0, got %d", StateIdle)
	}
	if StateRecording != 1 {
		t.Errorf("Expected StateRecording to be 1, got %d", StateRecording)
	}
	if StatePlaying != 2 {
		t.Errorf("Expected StatePlaying to be 2, got %d", StatePlaying)
	}
}

func TestConcurrentStateUpdates(t *testing.T) {
	manager, _, _ := readyManager(t, i18n.LanguageEnglish)
	// The recorders in readyManager are not goroutine-safe
	manager.setTooltip = func(string) {}
	manager.setIcon = func([]byte) {}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			manager.SetState(StateRecording)
			time.Sleep(1 * time.Millisecond)
			manager.SetState(StatePlaying)
			time.Sleep(1 * time.Millisecond)
			manager.SetState(StateIdle)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	if state := manager.GetState(); state != StateIdle {
		t.Errorf("Expected final state StateIdle, got %v", state)
	}
}
