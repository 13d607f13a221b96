package notification

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/yok-tottii/EzRecorder/internal/i18n"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	// TypeInfo is an informational notification
	TypeInfo NotificationType = "info"
	// TypeWarning is a warning notification
	TypeWarning NotificationType = "warning"
	// TypeError is an error notification
	TypeError NotificationType = "error"
	// TypeSuccess is a success notification
	TypeSuccess NotificationType = "success"
)

// Notification represents a desktop notification
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
}

// NotificationManager handles sending notifications to the user
type NotificationManager struct {
	appName string
	goos    string
	run     func(name string, args ...string) error
}

// NewNotificationManager creates a new notification manager
func NewNotificationManager(appName string) *NotificationManager {
	return &NotificationManager{
		appName: appName,
		goos:    runtime.GOOS,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// command builds the platform command that shows n
func (nm *NotificationManager) command(n *Notification) (string, []string) {
	if nm.goos == "darwin" {
		script := fmt.Sprintf(
			`display notification %s with title %s`,
			appleScriptString(n.Message),
			appleScriptString(n.Title),
		)
		return "osascript", []string{"-e", script}
	}

	urgency := "normal"
	if n.Type == TypeError {
		urgency = "critical"
	}
	return "notify-send", []string{"-u", urgency, n.Title, n.Message}
}

// appleScriptString quotes s as an AppleScript string literal
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Send sends a notification to the user via the desktop notification center
func (nm *NotificationManager) Send(notification *Notification) error {
	if notification == nil {
		return fmt.Errorf("notification cannot be nil")
	}
	if notification.Title == "" {
		notification.Title = nm.appName
	}

	name, args := nm.command(notification)
	if err := nm.run(name, args...); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	return nil
}

// SendInfo sends an informational notification
func (nm *NotificationManager) SendInfo(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeInfo,
	})
}

// SendWarning sends a warning notification
func (nm *NotificationManager) SendWarning(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeWarning,
	})
}

// SendError sends an error notification
func (nm *NotificationManager) SendError(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeError,
	})
}

// SendSuccess sends a success notification
func (nm *NotificationManager) SendSuccess(title, message string) error {
	return nm.Send(&Notification{
		Title:   title,
		Message: message,
		Type:    TypeSuccess,
	})
}

// withReason appends a failure reason to a localized message
func withReason(message, reason string) string {
	if reason == "" {
		return message
	}
	return message + ": " + reason
}

// RecordingStarted sends a notification that recording has started
func (nm *NotificationManager) RecordingStarted() error {
	return nm.SendInfo(nm.appName, i18n.T("notification.recording_started"))
}

// RecordingSaved sends a notification that a recording file was written
func (nm *NotificationManager) RecordingSaved(name string) error {
	return nm.SendSuccess(nm.appName, i18n.TF("notification.recording_saved", map[string]string{
		"name": name,
	}))
}

// RecordingFailed sends a notification that recording failed
func (nm *NotificationManager) RecordingFailed(reason string) error {
	return nm.SendError(nm.appName, withReason(i18n.T("error.recording_failed"), reason))
}

// MicrophonePermissionDenied sends a notification that microphone permission is denied
func (nm *NotificationManager) MicrophonePermissionDenied() error {
	return nm.SendError(nm.appName, i18n.T("error.mic_permission_denied"))
}

// RecordingTimeExceeded sends a notification that recording hit the time limit
func (nm *NotificationManager) RecordingTimeExceeded(seconds int) error {
	return nm.SendWarning(nm.appName, i18n.TF("notification.time_exceeded", map[string]string{
		"seconds": strconv.Itoa(seconds),
	}))
}

// AlreadyRecording sends a notification that a start was rejected
func (nm *NotificationManager) AlreadyRecording() error {
	return nm.SendWarning(nm.appName, i18n.T("error.already_recording"))
}

// NotRecording sends a notification that a stop was rejected
func (nm *NotificationManager) NotRecording() error {
	return nm.SendWarning(nm.appName, i18n.T("error.not_recording"))
}

// PlaybackFailed sends a notification that a recording could not be played
func (nm *NotificationManager) PlaybackFailed(reason string) error {
	return nm.SendError(nm.appName, withReason(i18n.T("error.playback_failed"), reason))
}

// DeleteFailed sends a notification that a recording could not be removed
func (nm *NotificationManager) DeleteFailed(reason string) error {
	return nm.SendError(nm.appName, withReason(i18n.T("error.delete_failed"), reason))
}

// PathCopied sends a notification that a recording path is on the clipboard
func (nm *NotificationManager) PathCopied(path string) error {
	return nm.SendInfo(nm.appName, i18n.TF("notification.path_copied", map[string]string{
		"path": path,
	}))
}

// NoRecordings sends a notification that the library is empty
func (nm *NotificationManager) NoRecordings() error {
	return nm.SendInfo(nm.appName, i18n.T("error.no_recordings"))
}

// DeviceNotFound sends a notification that audio device is not found
func (nm *NotificationManager) DeviceNotFound() error {
	return nm.SendError(nm.appName, i18n.T("error.device_not_found"))
}
