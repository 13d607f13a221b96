package tray

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"

	"github.com/yok-tottii/EzRecorder/internal/i18n"
	"github.com/yok-tottii/EzRecorder/internal/logger"
)

// State represents the current application state
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePlaying
)

// Manager manages the system tray icon and menu
type Manager struct {
	stateMutex      sync.RWMutex
	state           State
	ready           bool
	translator      *i18n.Translator
	log             *logger.Logger
	onReadyCallback func()
	onToggleRecord  func()
	onOpen          func()
	onCopyLatest    func()
	onOpenFolder    func()
	onDeviceChange  func(deviceID int) // Called when user selects a device
	onQuit          func()

	menuRecord        *systray.MenuItem
	menuOpen          *systray.MenuItem
	menuCopyLatest    *systray.MenuItem
	menuOpenFolder    *systray.MenuItem
	menuDevices       *systray.MenuItem // Parent menu for device selection
	menuQuit          *systray.MenuItem
	deviceMenuItems   []*systray.MenuItem  // Device submenu items
	deviceCancelFuncs []context.CancelFunc // Cancel functions for device menu goroutines

	// Icon cache
	iconIdle      []byte
	iconRecording []byte
	iconPlaying   []byte

	setIcon    func([]byte)
	setTooltip func(string)
}

// Config holds tray manager configuration
type Config struct {
	Translator     *i18n.Translator
	Logger         *logger.Logger
	OnReady        func() // Called when systray is ready for initialization
	OnToggleRecord func()
	OnOpen         func()
	OnCopyLatest   func()
	OnOpenFolder   func()
	OnDeviceChange func(deviceID int) // Called when user selects a device
	OnQuit         func()
}

// NewManager creates a new tray manager
func NewManager(config Config) *Manager {
	translator := config.Translator
	if translator == nil {
		translator = i18n.NewTranslator(i18n.LanguageEnglish)
		translator.LoadEmbedded()
	}

	m := &Manager{
		state:           StateIdle,
		translator:      translator,
		log:             config.Logger,
		onReadyCallback: config.OnReady,
		onToggleRecord:  config.OnToggleRecord,
		onOpen:          config.OnOpen,
		onCopyLatest:    config.OnCopyLatest,
		onOpenFolder:    config.OnOpenFolder,
		onDeviceChange:  config.OnDeviceChange,
		onQuit:          config.OnQuit,
		setIcon:         systray.SetIcon,
		setTooltip:      systray.SetTooltip,
	}

	// Load icons once at initialization
	m.iconIdle = m.loadIconData("mic_idle.png", getIdleFallback())
	m.iconRecording = m.loadIconData("mic_recording.png", getRecordingFallback())
	m.iconPlaying = m.loadIconData("play_circle.png", getPlayingFallback())

	return m
}

// Run starts the system tray (blocking call)
func (m *Manager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// onReady is called when systray is ready
func (m *Manager) onReady() {
	t := m.translator.Translate

	m.menuRecord = systray.AddMenuItem(t("menu.record"), "Start or stop recording")
	m.menuOpen = systray.AddMenuItem(t("menu.open"), "Open the recordings page")
	m.menuCopyLatest = systray.AddMenuItem(t("menu.copy_latest"), "Copy the newest recording path")
	m.menuOpenFolder = systray.AddMenuItem(t("menu.open_folder"), "Show recordings in Finder")
	m.menuDevices = systray.AddMenuItem(t("menu.devices"), "Select input device")

	systray.AddSeparator()

	m.menuQuit = systray.AddMenuItem(t("menu.quit"), "Quit the application")

	m.stateMutex.Lock()
	m.ready = true
	m.updateIcon()
	m.stateMutex.Unlock()

	// Start event loop
	go m.handleMenuEvents()

	if m.onReadyCallback != nil {
		m.onReadyCallback()
	}
}

// onExit is called when systray is exiting
func (m *Manager) onExit() {
	for _, cancel := range m.deviceCancelFuncs {
		cancel()
	}
}

// handleMenuEvents handles menu item clicks
func (m *Manager) handleMenuEvents() {
	for {
		select {
		case <-m.menuRecord.ClickedCh:
			call(m.onToggleRecord)
		case <-m.menuOpen.ClickedCh:
			call(m.onOpen)
		case <-m.menuCopyLatest.ClickedCh:
			call(m.onCopyLatest)
		case <-m.menuOpenFolder.ClickedCh:
			call(m.onOpenFolder)
		case <-m.menuQuit.ClickedCh:
			call(m.onQuit)
			systray.Quit()
			return
		}
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// SetState updates the tray icon based on the current state
func (m *Manager) SetState(state State) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	m.state = state
	m.updateIcon()
}

// GetState returns the displayed state
func (m *Manager) GetState() State {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()
	return m.state
}

// Relabel re-applies menu titles after a language change
func (m *Manager) Relabel() {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	if !m.ready {
		return
	}

	t := m.translator.Translate
	m.menuOpen.SetTitle(t("menu.open"))
	m.menuCopyLatest.SetTitle(t("menu.copy_latest"))
	m.menuOpenFolder.SetTitle(t("menu.open_folder"))
	m.menuDevices.SetTitle(t("menu.devices"))
	m.menuQuit.SetTitle(t("menu.quit"))
	m.updateIcon()
}

// statusKey returns the i18n key describing state
func statusKey(state State) string {
	switch state {
	case StateRecording:
		return "status.recording"
	case StatePlaying:
		return "status.playing"
	default:
		return "status.idle"
	}
}

// tooltip returns the tooltip for the current state
func (m *Manager) tooltip() string {
	return m.translator.Translate("tray.tooltip") + " - " + m.translator.Translate(statusKey(m.state))
}

// updateIcon updates the tray icon based on the current state; stateMutex must be held.
// Before the tray is ready only the state is recorded.
func (m *Manager) updateIcon() {
	if !m.ready {
		return
	}

	switch m.state {
	case StateIdle:
		m.setIcon(m.iconIdle)
	case StateRecording:
		m.setIcon(m.iconRecording)
	case StatePlaying:
		m.setIcon(m.iconPlaying)
	}
	m.setTooltip(m.tooltip())

	if m.menuRecord != nil {
		if m.state == StateRecording {
			m.menuRecord.SetTitle(m.translator.Translate("menu.stop"))
		} else {
			m.menuRecord.SetTitle(m.translator.Translate("menu.record"))
		}
	}
}

// Device represents an audio device for the menu
type Device struct {
	ID        int
	Name      string
	IsDefault bool
	IsCurrent bool
}

// UpdateDeviceMenu updates the device submenu with available devices
func (m *Manager) UpdateDeviceMenu(devices []Device) {
	if m.menuDevices == nil {
		return
	}

	// Cancel existing device menu goroutines
	for _, cancel := range m.deviceCancelFuncs {
		if cancel != nil {
			cancel()
		}
	}
	m.deviceCancelFuncs = nil

	// Remove existing device menu items
	for _, item := range m.deviceMenuItems {
		item.Hide()
	}
	m.deviceMenuItems = nil

	for _, device := range devices {
		prefix := ""
		if device.IsCurrent {
			prefix = "✓ "
		}

		tooltip := ""
		if device.IsDefault {
			tooltip = "System default device"
		}

		menuItem := m.menuDevices.AddSubMenuItem(prefix+device.Name, tooltip)
		m.deviceMenuItems = append(m.deviceMenuItems, menuItem)

		ctx, cancel := context.WithCancel(context.Background())
		m.deviceCancelFuncs = append(m.deviceCancelFuncs, cancel)

		go func(ctx context.Context, id int, item *systray.MenuItem) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-item.ClickedCh:
					if m.onDeviceChange != nil {
						m.onDeviceChange(id)
					}
				}
			}
		}(ctx, device.ID, menuItem)
	}
}

// Quit quits the system tray
func (m *Manager) Quit() {
	systray.Quit()
}

// loadIconData loads an icon from the assets directory next to the executable.
// If the file cannot be loaded, it returns a fallback placeholder icon.
func (m *Manager) loadIconData(filename string, fallback []byte) []byte {
	exe, err := os.Executable()
	if err != nil {
		m.log.Warn("Could not resolve executable path: %v", err)
		return fallback
	}

	iconPath := filepath.Join(filepath.Dir(exe), "assets", "icon", filename)
	data, err := os.ReadFile(iconPath)
	if err != nil {
		m.log.Debug("Using built-in icon for %s: %v", filename, err)
		return fallback
	}

	return data
}

// getIdleFallback returns the fallback icon data for idle state
func getIdleFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x18, 0x49, 0x44, 0x41,
		0x54, 0x78, 0xda, 0x62, 0xfc, 0xff, 0xff, 0x3f,
		0x03, 0x00, 0x00, 0x00, 0xff, 0xff, 0x03, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44,
		0xae, 0x42, 0x60, 0x82,
	}
}

// getRecordingFallback returns the fallback icon data for recording state
func getRecordingFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x20, 0x49, 0x44, 0x41,
		0x54, 0x78, 0xda, 0x62, 0xfc, 0xcf, 0xc0, 0xc0,
		0xc0, 0xf0, 0x9f, 0x81, 0x81, 0x81, 0x81, 0xff,
		0x19, 0x18, 0x18, 0x18, 0x00, 0x00, 0x00, 0x00,
		0xff, 0xff, 0x03, 0x00, 0x0c, 0x10, 0x02, 0x01,
		0x8b, 0xd5, 0xf8, 0x23, 0x00, 0x00, 0x00, 0x00,
		0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
}

// getPlayingFallback returns the fallback icon data for playing state
func getPlayingFallback() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x10,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0xf3, 0xff,
		0x61, 0x00, 0x00, 0x00, 0x20, 0x49, 0x44, 0x41,
		0x54, 0x78, 0xda, 0x62, 0xfc, 0xcf, 0xf0, 0x9f,
		0xc1, 0xc8, 0xc0, 0xc0, 0xc0, 0xff, 0x0c, 0x0c,
		0x0c, 0xfc, 0xcf, 0xc0, 0xc0, 0xc0, 0x00, 0x00,
		0x00, 0x00, 0xff, 0xff, 0x03, 0x00, 0x0c, 0x50,
		0x02, 0x01, 0x3e, 0x0a, 0xe4, 0x5b, 0x00, 0x00,
		0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42,
		0x60, 0x82,
	}
}
