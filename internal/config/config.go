package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// AppName is used for the app-private data directory
const AppName = "EzRecorder"

// Config holds application configuration
type Config struct {
	Hotkey           HotkeyConfig `json:"hotkey"`
	RecordingsDir    string       `json:"recordings_dir"`
	AudioDeviceID    int          `json:"audio_device_id"`
	SampleRate       int          `json:"sample_rate"`
	MaxRecordTime    int          `json:"max_record_time"` // seconds
	UILanguage       string       `json:"ui_language"`     // "ja" or "en"
	WaveformCapacity int          `json:"waveform_capacity"`
	SampleIntervalMs int          `json:"sample_interval_ms"`
	ServerPort       int          `json:"server_port"`
	Extensions       []string     `json:"extensions"`
	LogLevel         string       `json:"log_level"`
	mu               sync.RWMutex
}

// HotkeyConfig holds hotkey configuration
type HotkeyConfig struct {
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Cmd   bool   `json:"cmd"`
	Key   string `json:"key"` // e.g., "R"
}

// supportedSampleRates are the rates offered in settings
var supportedSampleRates = []int{8000, 16000, 22050, 32000, 44100, 48000}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Hotkey: HotkeyConfig{
			Ctrl: true,
			Alt:  true,
			Key:  "R",
		},
		RecordingsDir:    filepath.Join("~", "Music", AppName),
		AudioDeviceID:    -1, // -1 means use system default device
		SampleRate:       44100,
		MaxRecordTime:    60,
		UILanguage:       "ja",
		WaveformCapacity: 100,
		SampleIntervalMs: 100,
		ServerPort:       18766,
		Extensions:       []string{"wav", "mp3", "m4a"},
		LogLevel:         "info",
	}
}

// Load loads configuration from the specified path
func Load(path string) (*Config, error) {
	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so fields missing in older files keep sane values
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Hotkey.Key == "" {
		config.Hotkey.Key = "R"
	}
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultConfig().Extensions
	}

	return config, nil
}

// Save saves configuration to the specified path
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// AppDataDir returns the app-private directory
func AppDataDir() string {
	if runtime.GOOS == "darwin" {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "Library", "Application Support", AppName)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, AppName)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	return filepath.Join(AppDataDir(), "config.json")
}

// FallbackRecordingsDir is used when the configured directory cannot be created
func FallbackRecordingsDir() string {
	return filepath.Join(AppDataDir(), "recordings")
}

// ResolveRecordingsDir expands and creates the recordings directory,
// falling back to the app-private directory when that fails
func (c *Config) ResolveRecordingsDir() (string, error) {
	c.mu.RLock()
	configured := c.RecordingsDir
	c.mu.RUnlock()

	return resolveDir(configured, FallbackRecordingsDir())
}

func resolveDir(configured, fallback string) (string, error) {
	if configured != "" {
		dir, err := ExpandPath(configured)
		if err == nil {
			if err = os.MkdirAll(dir, 0755); err == nil {
				return dir, nil
			}
		}
	}

	if err := os.MkdirAll(fallback, 0755); err != nil {
		return "", fmt.Errorf("failed to create recordings directory: %w", err)
	}
	return fallback, nil
}

// MaxDuration returns the recording limit as a duration
func (c *Config) MaxDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.MaxRecordTime) * time.Second
}

// SampleInterval returns the waveform sampling cadence
func (c *Config) SampleInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.SampleIntervalMs) * time.Millisecond
}

// Update updates configuration fields
func (c *Config) Update(updates map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range updates {
		switch key {
		case "recordings_dir":
			if v, ok := value.(string); ok {
				if strings.TrimSpace(v) == "" {
					return fmt.Errorf("recordings_dir cannot be empty")
				}
				c.RecordingsDir = v
			}
		case "audio_device_id":
			if v, ok := value.(float64); ok {
				c.AudioDeviceID = int(v)
			}
		case "sample_rate":
			if v, ok := value.(float64); ok {
				if !isSupportedSampleRate(int(v)) {
					return fmt.Errorf("invalid sample_rate: %d", int(v))
				}
				c.SampleRate = int(v)
			}
		case "ui_language":
			if v, ok := value.(string); ok {
				if v != "ja" && v != "en" {
					return fmt.Errorf("invalid ui_language: %s", v)
				}
				c.UILanguage = v
			}
		case "max_record_time":
			if v, ok := value.(float64); ok {
				if v <= 0 || v > 3600 {
					return fmt.Errorf("invalid max_record_time: %d", int(v))
				}
				c.MaxRecordTime = int(v)
			}
		case "waveform_capacity":
			if v, ok := value.(float64); ok {
				if v <= 0 || v > 1000 {
					return fmt.Errorf("invalid waveform_capacity: %d", int(v))
				}
				c.WaveformCapacity = int(v)
			}
		case "sample_interval_ms":
			if v, ok := value.(float64); ok {
				if v < 10 || v > 1000 {
					return fmt.Errorf("invalid sample_interval_ms: %d", int(v))
				}
				c.SampleIntervalMs = int(v)
			}
		case "server_port":
			if v, ok := value.(float64); ok {
				if v < 1024 || v > 65535 {
					return fmt.Errorf("invalid server_port: %d", int(v))
				}
				c.ServerPort = int(v)
			}
		case "log_level":
			if v, ok := value.(string); ok {
				c.LogLevel = v
			}
		case "extensions":
			if v, ok := value.([]interface{}); ok {
				extensions := make([]string, 0, len(v))
				for _, item := range v {
					if ext, ok := item.(string); ok && ext != "" {
						extensions = append(extensions, strings.ToLower(strings.TrimPrefix(ext, ".")))
					}
				}
				if len(extensions) == 0 {
					return fmt.Errorf("extensions cannot be empty")
				}
				c.Extensions = extensions
			}
		case "hotkey":
			if v, ok := value.(map[string]interface{}); ok {
				if ctrl, ok := v["ctrl"].(bool); ok {
					c.Hotkey.Ctrl = ctrl
				}
				if shift, ok := v["shift"].(bool); ok {
					c.Hotkey.Shift = shift
				}
				if alt, ok := v["alt"].(bool); ok {
					c.Hotkey.Alt = alt
				}
				if cmd, ok := v["cmd"].(bool); ok {
					c.Hotkey.Cmd = cmd
				}
				if key, ok := v["key"].(string); ok {
					c.Hotkey.Key = key
				}
			}
		}
	}

	return nil
}

func isSupportedSampleRate(rate int) bool {
	for _, r := range supportedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Config{
		Hotkey:           c.Hotkey,
		RecordingsDir:    c.RecordingsDir,
		AudioDeviceID:    c.AudioDeviceID,
		SampleRate:       c.SampleRate,
		MaxRecordTime:    c.MaxRecordTime,
		UILanguage:       c.UILanguage,
		WaveformCapacity: c.WaveformCapacity,
		SampleIntervalMs: c.SampleIntervalMs,
		ServerPort:       c.ServerPort,
		Extensions:       append([]string{}, c.Extensions...),
		LogLevel:         c.LogLevel,
	}
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// Validate validates all configuration fields
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Hotkey.Key == "" {
		return fmt.Errorf("hotkey key cannot be empty")
	}

	if strings.TrimSpace(c.RecordingsDir) == "" {
		return fmt.Errorf("recordings_dir cannot be empty")
	}

	if !isSupportedSampleRate(c.SampleRate) {
		return fmt.Errorf("invalid sample_rate: %d (must be one of %v)", c.SampleRate, supportedSampleRates)
	}

	if c.UILanguage != "ja" && c.UILanguage != "en" {
		return fmt.Errorf("invalid ui_language: %s (must be 'ja' or 'en')", c.UILanguage)
	}

	if c.MaxRecordTime <= 0 || c.MaxRecordTime > 3600 {
		return fmt.Errorf("invalid max_record_time: %d (must be between 1 and 3600 seconds)", c.MaxRecordTime)
	}

	if c.WaveformCapacity <= 0 || c.WaveformCapacity > 1000 {
		return fmt.Errorf("invalid waveform_capacity: %d (must be between 1 and 1000)", c.WaveformCapacity)
	}

	if c.SampleIntervalMs < 10 || c.SampleIntervalMs > 1000 {
		return fmt.Errorf("invalid sample_interval_ms: %d (must be between 10 and 1000)", c.SampleIntervalMs)
	}

	if c.ServerPort < 1024 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port: %d (must be between 1024 and 65535)", c.ServerPort)
	}

	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions cannot be empty")
	}

	return nil
}
