//go:build !darwin

package permissions

// Other platforms have no per-app microphone consent; PortAudio reports failures on open
func microphoneStatus() PermissionStatus {
	return PermissionAuthorized
}

func openMicrophoneSettings() error {
	return nil
}
