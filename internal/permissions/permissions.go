package permissions

// PermissionStatus represents the status of a system permission
type PermissionStatus int

const (
	// PermissionNotDetermined means the user hasn't been asked yet
	PermissionNotDetermined PermissionStatus = 0
	// PermissionRestricted means the permission is restricted by parental controls
	PermissionRestricted PermissionStatus = 1
	// PermissionDenied means the user has explicitly denied the permission
	PermissionDenied PermissionStatus = 2
	// PermissionAuthorized means the user has authorized the permission
	PermissionAuthorized PermissionStatus = 3
)

// PermissionStatus string representation
func (ps PermissionStatus) String() string {
	switch ps {
	case PermissionNotDetermined:
		return "NotDetermined"
	case PermissionRestricted:
		return "Restricted"
	case PermissionDenied:
		return "Denied"
	case PermissionAuthorized:
		return "Authorized"
	default:
		return "Unknown"
	}
}

// PermissionChecker checks system permissions
type PermissionChecker struct {
	microphone func() PermissionStatus
}

// NewPermissionChecker creates a new permission checker
func NewPermissionChecker() *PermissionChecker {
	return &PermissionChecker{microphone: microphoneStatus}
}

// CheckMicrophonePermission checks if the application has microphone access permission
func (pc *PermissionChecker) CheckMicrophonePermission() PermissionStatus {
	return pc.microphone()
}

// IsMicrophoneAuthorized returns whether microphone permission is explicitly granted
func (pc *PermissionChecker) IsMicrophoneAuthorized() bool {
	return pc.CheckMicrophonePermission() == PermissionAuthorized
}

// MicrophoneGranted reports whether capture may be attempted.
// NotDetermined counts as granted: opening the device is what makes the OS ask.
func (pc *PermissionChecker) MicrophoneGranted() bool {
	switch pc.CheckMicrophonePermission() {
	case PermissionAuthorized, PermissionNotDetermined:
		return true
	default:
		return false
	}
}

// RequestMicrophonePermission opens system settings for microphone permission
func (pc *PermissionChecker) RequestMicrophonePermission() error {
	return openMicrophoneSettings()
}

// Report is the permission summary shown in the UI
type Report struct {
	Microphone        string `json:"microphone"`
	MicrophoneGranted bool   `json:"microphone_granted"`
	Message           string `json:"message,omitempty"`
}

// CheckAllPermissions returns the permission summary
func (pc *PermissionChecker) CheckAllPermissions() Report {
	status := pc.CheckMicrophonePermission()
	report := Report{
		Microphone:        status.String(),
		MicrophoneGranted: pc.MicrophoneGranted(),
	}
	if !report.MicrophoneGranted {
		report.Message = GetPermissionStatusMessage(status)
	}
	return report
}

// GetPermissionStatusMessage returns a human-readable message for a permission status
func GetPermissionStatusMessage(status PermissionStatus) string {
	switch status {
	case PermissionNotDetermined:
		return "Permission not yet determined"
	case PermissionRestricted:
		return "Permission restricted by parental controls"
	case PermissionDenied:
		return "Permission denied"
	case PermissionAuthorized:
		return "Permission authorized"
	default:
		return "Unknown permission status"
	}
}
