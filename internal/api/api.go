package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/yok-tottii/EzRecorder/internal/audio"
	"github.com/yok-tottii/EzRecorder/internal/config"
	"github.com/yok-tottii/EzRecorder/internal/hotkey"
	"github.com/yok-tottii/EzRecorder/internal/library"
	"github.com/yok-tottii/EzRecorder/internal/logger"
	"github.com/yok-tottii/EzRecorder/internal/permissions"
	"github.com/yok-tottii/EzRecorder/internal/recording"
	"github.com/yok-tottii/EzRecorder/internal/waveform"
)

// Recorder is the part of recording.Manager the API drives
type Recorder interface {
	Start() (string, error)
	Stop() (string, error)
	Status() recording.Status
	OnStateChange(fn func(recording.Status))
}

// Library is the part of library.Library the API drives
type Library interface {
	Snapshot() library.Snapshot
	Dir() string
	Find(name string) (library.Recording, error)
	Latest() (library.Recording, error)
	Delete(rec library.Recording) error
	Play(rec library.Recording) error
	Pause() error
	Resume() error
	Stop() error
	Subscribe(fn func(library.Snapshot)) func()
}

// Waveform publishes redraw snapshots
type Waveform interface {
	LastFrame() waveform.Frame
	Subscribe(fn func(waveform.Frame)) func()
}

// DeviceLister lists audio input devices
type DeviceLister interface {
	ListDevices() ([]audio.Device, error)
}

// Clipboard copies recording paths
type Clipboard interface {
	CopyPath(path string) error
}

// PermissionReporter reports privacy permissions
type PermissionReporter interface {
	CheckAllPermissions() permissions.Report
}

// Notifier confirms clipboard copies
type Notifier interface {
	PathCopied(path string) error
}

// Deps are the collaborators of a Handler. Devices, Clipboard, Permissions,
// Notifier and Logger may be nil.
type Deps struct {
	Config      *config.Config
	ConfigPath  string
	Recorder    Recorder
	Library     Library
	Waveform    Waveform
	Devices     DeviceLister
	Clipboard   Clipboard
	Permissions PermissionReporter
	Notifier    Notifier
	Logger      *logger.Logger
}

// Handler manages API endpoints
type Handler struct {
	deps              Deps
	hub               *hub
	onSettingsChanged func(*config.Config) error // applies saved settings to the running app
	unsubscribe       []func()
}

// New creates a new API handler and starts forwarding events to WebSocket clients.
// onSettingsChanged may be nil.
func New(deps Deps, onSettingsChanged func(*config.Config) error) *Handler {
	if deps.ConfigPath == "" {
		deps.ConfigPath = config.GetConfigPath()
	}

	h := &Handler{
		deps:              deps,
		hub:               newHub(deps.Logger),
		onSettingsChanged: onSettingsChanged,
	}

	if deps.Waveform != nil {
		h.unsubscribe = append(h.unsubscribe, deps.Waveform.Subscribe(func(frame waveform.Frame) {
			h.hub.broadcast(message{Type: "waveform", Frame: &frame})
		}))
	}
	if deps.Library != nil {
		h.unsubscribe = append(h.unsubscribe, deps.Library.Subscribe(func(snapshot library.Snapshot) {
			h.hub.broadcast(message{Type: "library", Library: &snapshot})
		}))
	}
	if deps.Recorder != nil {
		deps.Recorder.OnStateChange(func(status recording.Status) {
			h.hub.broadcast(message{Type: "state", State: &status})
		})
	}

	return h
}

// RegisterRoutes registers all API routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/recordings", h.handleRecordings)
	mux.HandleFunc("/api/recordings/{name}", h.handleRecording)
	mux.HandleFunc("/api/recordings/{name}/play", h.handlePlay)
	mux.HandleFunc("/api/recordings/{name}/copy", h.handleCopy)
	mux.HandleFunc("/api/recordings/latest/copy", h.handleCopyLatest)
	mux.HandleFunc("/api/playback/{action}", h.handlePlayback)
	mux.HandleFunc("/api/record/{action}", h.handleRecord)
	mux.HandleFunc("/api/state", h.handleState)
	mux.HandleFunc("/api/waveform.svg", h.handleWaveformSVG)
	mux.HandleFunc("/api/settings", h.handleSettings)
	mux.HandleFunc("/api/hotkey/validate", h.handleHotkeyValidate)
	mux.HandleFunc("/api/devices", h.handleDevices)
	mux.HandleFunc("/api/permissions", h.handlePermissions)
	mux.HandleFunc("/ws", h.handleWebSocket)
}

// Close stops event forwarding and disconnects WebSocket clients
func (h *Handler) Close() {
	for _, fn := range h.unsubscribe {
		fn()
	}
	h.unsubscribe = nil
	h.hub.close()
}

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg}
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrNoSession),
		errors.Is(err, recording.ErrAlreadyRecording),
		errors.Is(err, recording.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, recording.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// handleRecordings handles GET /api/recordings
func (h *Handler) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Library.Snapshot())
}

// handleRecording handles DELETE /api/recordings/{name}
func (h *Handler) handleRecording(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.PathValue("name")
	rec, err := h.deps.Library.Find(name)
	if errors.Is(err, library.ErrNotFound) {
		// Already gone on disk; delete still drops the stale entry
		rec = library.Recording{Name: name, Path: filepath.Join(h.deps.Library.Dir(), name)}
	} else if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if err := h.deps.Library.Delete(rec); err != nil {
		h.deps.Logger.Error("Failed to delete %s: %v", rec.Path, err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	h.deps.Logger.Info("Deleted recording %s", rec.Name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handlePlay handles POST /api/recordings/{name}/play
func (h *Handler) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, err := h.deps.Library.Find(r.PathValue("name"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if err := h.deps.Library.Play(rec); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.deps.Library.Snapshot())
}

// handleCopy handles POST /api/recordings/{name}/copy
func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, err := h.deps.Library.Find(r.PathValue("name"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.copyPath(w, rec)
}

// handleCopyLatest handles POST /api/recordings/latest/copy
func (h *Handler) handleCopyLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, err := h.deps.Library.Latest()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.copyPath(w, rec)
}

func (h *Handler) copyPath(w http.ResponseWriter, rec library.Recording) {
	if h.deps.Clipboard == nil {
		writeError(w, http.StatusServiceUnavailable, "clipboard not available")
		return
	}

	if err := h.deps.Clipboard.CopyPath(rec.Path); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to copy path: %v", err))
		return
	}

	if h.deps.Notifier != nil {
		if err := h.deps.Notifier.PathCopied(rec.Path); err != nil {
			h.deps.Logger.Warn("Failed to send notification: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"path": rec.Path})
}

// handlePlayback handles POST /api/playback/{pause,resume,stop}
func (h *Handler) handlePlayback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var err error
	switch r.PathValue("action") {
	case "pause":
		err = h.deps.Library.Pause()
	case "resume":
		err = h.deps.Library.Resume()
	case "stop":
		err = h.deps.Library.Stop()
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Library.Snapshot())
}

// handleRecord handles POST /api/record/{start,stop}
func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		path string
		err  error
	)
	switch r.PathValue("action") {
	case "start":
		path, err = h.deps.Recorder.Start()
	case "stop":
		path, err = h.deps.Recorder.Stop()
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":  path,
		"state": h.deps.Recorder.Status(),
	})
}

// handleState handles GET /api/state
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Recorder.Status())
}

// handleWaveformSVG handles GET /api/waveform.svg
func (h *Handler) handleWaveformSVG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var frame waveform.Frame
	if h.deps.Waveform != nil {
		frame = h.deps.Waveform.LastFrame()
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprint(w, waveform.SVG(frame, r.URL.Query().Get("color")))
}

// handleSettings handles GET and PUT /api/settings
func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSettings(w, r)
	case http.MethodPut:
		h.putSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// getSettings returns the current configuration
func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Config.Clone())
}

// putSettings validates, saves and applies the configuration
func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Validate on a copy so a rejected update leaves the live config untouched
	candidate := h.deps.Config.Clone()
	if err := candidate.Update(updates); err != nil {
		http.Error(w, fmt.Sprintf("Failed to update config: %v", err), http.StatusBadRequest)
		return
	}
	if err := candidate.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid config: %v", err), http.StatusBadRequest)
		return
	}
	if _, err := hotkey.ParseConfig(candidate.Hotkey.Ctrl, candidate.Hotkey.Shift,
		candidate.Hotkey.Alt, candidate.Hotkey.Cmd, candidate.Hotkey.Key); err != nil {
		http.Error(w, fmt.Sprintf("Invalid hotkey: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.deps.Config.Update(updates); err != nil {
		http.Error(w, fmt.Sprintf("Failed to update config: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.deps.Config.Save(h.deps.ConfigPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to save config: %v", err), http.StatusInternalServerError)
		return
	}

	if h.onSettingsChanged != nil {
		if err := h.onSettingsChanged(h.deps.Config); err != nil {
			// The file is saved; the running app keeps part of the old settings until restart
			h.deps.Logger.Warn("Failed to apply settings: %v", err)
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "partial",
				"message": fmt.Sprintf("Settings saved but could not be applied: %v. Please restart the application.", err),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
	})
}

// handleHotkeyValidate handles POST /api/hotkey/validate
func (h *Handler) handleHotkeyValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request config.HotkeyConfig
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	parsed, err := hotkey.ParseConfig(request.Ctrl, request.Shift, request.Alt, request.Cmd, request.Key)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conflictNames := []string{}
	for _, c := range hotkey.CheckConflicts(parsed.Modifiers, parsed.Key) {
		conflictNames = append(conflictNames, c.Name)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"display":   parsed.String(),
		"conflicts": conflictNames,
	})
}

// Device represents an audio device
type Device struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// convertAudioDevices converts audio.Device slice to api.Device slice
func convertAudioDevices(audioDevices []audio.Device) []Device {
	devices := make([]Device, 0, len(audioDevices))
	for _, dev := range audioDevices {
		devices = append(devices, Device{
			ID:        dev.ID,
			Name:      dev.Name,
			IsDefault: dev.IsDefault,
		})
	}
	return devices
}

// handleDevices handles GET /api/devices
func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices := []Device{}
	if h.deps.Devices != nil {
		audioDevices, err := h.deps.Devices.ListDevices()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to list audio devices: %v", err), http.StatusInternalServerError)
			return
		}
		devices = convertAudioDevices(audioDevices)
	}

	writeJSON(w, http.StatusOK, devices)
}

// handlePermissions handles GET /api/permissions
func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.deps.Permissions == nil {
		writeJSON(w, http.StatusOK, permissions.Report{
			Microphone:        permissions.PermissionAuthorized.String(),
			MicrophoneGranted: true,
		})
		return
	}

	writeJSON(w, http.StatusOK, h.deps.Permissions.CheckAllPermissions())
}
