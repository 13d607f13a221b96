package notification

import (
	"errors"
	"strings"
	"testing"

	"github.com/yok-tottii/EzRecorder/internal/i18n"
)

type sentCommand struct {
	name string
	args []string
}

// newRecordingManager returns a manager that records commands instead of running them
func newRecordingManager(goos string, runErr error) (*NotificationManager, *[]sentCommand) {
	var sent []sentCommand
	nm := NewNotificationManager("TestApp")
	nm.goos = goos
	nm.run = func(name string, args ...string) error {
		sent = append(sent, sentCommand{name: name, args: args})
		return runErr
	}
	return nm, &sent
}

func TestNewNotificationManager(t *testing.T) {
	nm := NewNotificationManager("TestApp")

	if nm == nil {
		t.Fatal("Expected notification manager to be created")
	}

	if nm.appName != "TestApp" {
		t.Errorf("Expected appName to be TestApp, got %s", nm.appName)
	}
}

func TestSend_Nil(t *testing.T) {
	nm, sent := newRecordingManager("darwin", nil)

	if err := nm.Send(nil); err == nil {
		t.Error("Expected error for nil notification")
	}
	if len(*sent) != 0 {
		t.Errorf("Expected no command, got %d", len(*sent))
	}
}

func TestSend_Darwin(t *testing.T) {
	nm, sent := newRecordingManager("darwin", nil)

	if err := nm.SendInfo("Title", `say "hi"`); err != nil {
		t.Fatalf("SendInfo failed: %v", err)
	}

	if len(*sent) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(*sent))
	}
	cmd := (*sent)[0]
	if cmd.name != "osascript" {
		t.Errorf("Expected osascript, got %s", cmd.name)
	}
	script := cmd.args[1]
	if !strings.Contains(script, `"say \"hi\""`) {
		t.Errorf("Expected escaped message in script, got %s", script)
	}
	if !strings.Contains(script, `with title "Title"`) {
		t.Errorf("Expected title in script, got %s", script)
	}
}

func TestSend_Linux(t *testing.T) {
	nm, sent := newRecordingManager("linux", nil)

	if err := nm.SendError("", "boom"); err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	cmd := (*sent)[0]
	if cmd.name != "notify-send" {
		t.Errorf("Expected notify-send, got %s", cmd.name)
	}
	expected := []string{"-u", "critical", "TestApp", "boom"}
	if strings.Join(cmd.args, "|") != strings.Join(expected, "|") {
		t.Errorf("Expected args %v, got %v", expected, cmd.args)
	}
}

func TestSend_RunError(t *testing.T) {
	nm, _ := newRecordingManager("darwin", errors.New("no display"))

	err := nm.SendWarning("Title", "Message")
	if err == nil || !strings.Contains(err.Error(), "failed to send notification") {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}

func TestAppMessages(t *testing.T) {
	translator, err := i18n.NewDefaultTranslator(i18n.LanguageEnglish)
	if err != nil {
		t.Fatalf("Failed to create translator: %v", err)
	}
	i18n.GlobalTranslator = translator
	defer func() { i18n.GlobalTranslator = nil }()

	nm, sent := newRecordingManager("linux", nil)

	tests := []struct {
		name     string
		send     func() error
		contains string
	}{
		{"started", nm.RecordingStarted, "Recording started"},
		{"saved", func() error { return nm.RecordingSaved("recording_1.wav") }, "Saved recording_1.wav"},
		{"failed", func() error { return nm.RecordingFailed("device busy") }, "Recording failed: device busy"},
		{"permission", nm.MicrophonePermissionDenied, "Microphone access denied"},
		{"time", func() error { return nm.RecordingTimeExceeded(60) }, "60 seconds"},
		{"already", nm.AlreadyRecording, "Already recording"},
		{"not recording", nm.NotRecording, "Not recording"},
		{"playback", func() error { return nm.PlaybackFailed("") }, "Playback failed"},
		{"delete", func() error { return nm.DeleteFailed("busy") }, "Could not delete the recording: busy"},
		{"copied", func() error { return nm.PathCopied("/tmp/a.wav") }, "Copied /tmp/a.wav"},
		{"empty", nm.NoRecordings, "No recordings yet"},
		{"device", nm.DeviceNotFound, "Audio device not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*sent = nil
			if err := tt.send(); err != nil {
				t.Fatalf("send failed: %v", err)
			}
			message := (*sent)[0].args[3]
			if !strings.Contains(message, tt.contains) {
				t.Errorf("Expected message to contain %q, got %q", tt.contains, message)
			}
		})
	}
}
