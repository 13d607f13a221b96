package hotkey

import (
	"strings"

	"golang.design/x/hotkey"
)

// ConflictInfo represents information about a known shortcut conflict
type ConflictInfo struct {
	Name        string
	Description string
	Modifiers   []hotkey.Modifier
	Key         hotkey.Key
}

// knownConflicts contains a list of known macOS shortcuts that might conflict
var knownConflicts = []ConflictInfo{
	{
		Name:        "Spotlight",
		Description: "macOS Spotlight search",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeySpace,
	},
	{
		Name:        "Alfred",
		Description: "Alfred launcher (common default)",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeySpace,
	},
	{
		Name:        "Raycast",
		Description: "Raycast launcher (common default)",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeySpace,
	},
	{
		Name:        "IME Switch",
		Description: "Input method editor switch",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeySpace,
	},
	{
		Name:        "Screenshot",
		Description: "macOS screenshot toolbar",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd, hotkey.ModShift},
		Key:         hotkey.Key5,
	},
	{
		Name:        "Screen Recording",
		Description: "QuickTime new screen recording",
		Modifiers:   []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModCmd},
		Key:         hotkey.KeyN,
	},
	{
		Name:        "Force Quit",
		Description: "macOS Force Quit",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd, hotkey.ModOption},
		Key:         hotkey.KeyEscape,
	},
}

// CheckConflicts checks if the given hotkey conflicts with known system shortcuts
func CheckConflicts(modifiers []hotkey.Modifier, key hotkey.Key) []ConflictInfo {
	var conflicts []ConflictInfo

	for _, known := range knownConflicts {
		if hotkeyMatches(modifiers, key, known.Modifiers, known.Key) {
			conflicts = append(conflicts, known)
		}
	}

	return conflicts
}

// hotkeyMatches checks if two hotkey combinations are identical
func hotkeyMatches(mods1 []hotkey.Modifier, key1 hotkey.Key, mods2 []hotkey.Modifier, key2 hotkey.Key) bool {
	if key1 != key2 {
		return false
	}

	if len(mods1) != len(mods2) {
		return false
	}

	// Create maps for comparison
	modMap1 := make(map[hotkey.Modifier]bool)
	modMap2 := make(map[hotkey.Modifier]bool)

	for _, mod := range mods1 {
		modMap1[mod] = true
	}

	for _, mod := range mods2 {
		modMap2[mod] = true
	}

	// Check if all modifiers match
	for mod := range modMap1 {
		if !modMap2[mod] {
			return false
		}
	}

	return true
}

// FormatHotkey returns a human-readable string representation of the hotkey
func FormatHotkey(modifiers []hotkey.Modifier, key hotkey.Key) string {
	result := ""

	for _, mod := range modifiers {
		switch mod {
		case hotkey.ModCtrl:
			result += "⌃"
		case hotkey.ModShift:
			result += "⇧"
		case hotkey.ModOption:
			result += "⌥"
		case hotkey.ModCmd:
			result += "⌘"
		}
	}

	result += keyToString(key)
	return result
}

// namedKeys maps non-alphanumeric keys to display names
var namedKeys = map[hotkey.Key]string{
	hotkey.KeySpace:  "Space",
	hotkey.KeyEscape: "Esc",
	hotkey.KeyReturn: "Return",
	hotkey.KeyTab:    "Tab",
	hotkey.KeyDelete: "Delete",
}

// letterKeys lists A to Z in order; the library's key codes are not contiguous on macOS
var letterKeys = []hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
	hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
	hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
	hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
	hotkey.KeyY, hotkey.KeyZ,
}

var digitKeys = []hotkey.Key{
	hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
	hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
}

// keyToString converts a hotkey.Key to a display string
func keyToString(key hotkey.Key) string {
	if name, ok := namedKeys[key]; ok {
		return name
	}
	for i, k := range letterKeys {
		if k == key {
			return string(rune('A' + i))
		}
	}
	for i, k := range digitKeys {
		if k == key {
			return string(rune('0' + i))
		}
	}
	return "Unknown"
}

// ParseKey converts a display name ("R", "7", "Space") back to a hotkey.Key
func ParseKey(name string) (hotkey.Key, bool) {
	for key, display := range namedKeys {
		if strings.EqualFold(display, name) {
			return key, true
		}
	}
	if strings.EqualFold(name, "Escape") {
		return hotkey.KeyEscape, true
	}

	if len(name) == 1 {
		c := strings.ToUpper(name)[0]
		switch {
		case c >= 'A' && c <= 'Z':
			return letterKeys[c-'A'], true
		case c >= '0' && c <= '9':
			return digitKeys[c-'0'], true
		}
	}
	return 0, false
}
