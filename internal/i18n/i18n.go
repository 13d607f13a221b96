package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Language represents a supported language
type Language string

const (
	// Japanese language
	LanguageJapanese Language = "ja"
	// English language
	LanguageEnglish Language = "en"
)

// Translator manages translations for the application
type Translator struct {
	currentLanguage Language
	translations    map[Language]map[string]string
	mu              sync.RWMutex
}

// NewTranslator creates a new translator with default language
func NewTranslator(language Language) *Translator {
	return &Translator{
		currentLanguage: language,
		translations:    make(map[Language]map[string]string),
	}
}

// LoadTranslations loads translations from JSON data
func (t *Translator) LoadTranslations(language Language, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var translations map[string]string
	if err := json.Unmarshal(data, &translations); err != nil {
		return fmt.Errorf("failed to unmarshal translations: %w", err)
	}

	t.translations[language] = translations
	return nil
}

// LoadTranslationsFromFile loads translations from a JSON file
func (t *Translator) LoadTranslationsFromFile(language Language, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read translation file: %w", err)
	}

	return t.LoadTranslations(language, data)
}

// SetLanguage sets the current language
func (t *Translator) SetLanguage(language Language) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentLanguage = language
}

// GetLanguage returns the current language
func (t *Translator) GetLanguage() Language {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentLanguage
}

// Translate translates a key in the current language
func (t *Translator) Translate(key string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if translations, ok := t.translations[t.currentLanguage]; ok {
		if text, ok := translations[key]; ok {
			return text
		}
	}

	// Fallback to English if translation not found
	if t.currentLanguage != LanguageEnglish {
		if translations, ok := t.translations[LanguageEnglish]; ok {
			if text, ok := translations[key]; ok {
				return text
			}
		}
	}

	// Return key itself if no translation found
	return key
}

// TranslateWithFormat translates a key and formats with parameters
func (t *Translator) TranslateWithFormat(key string, params map[string]string) string {
	text := t.Translate(key)

	// Simple string replacement for parameters
	for param, value := range params {
		placeholder := fmt.Sprintf("{%s}", param)
		text = strings.ReplaceAll(text, placeholder, value)
	}

	return text
}

// GetAllTranslations returns all translations for the current language
func (t *Translator) GetAllTranslations() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if translations, ok := t.translations[t.currentLanguage]; ok {
		// Return a copy to prevent external modifications
		result := make(map[string]string)
		for k, v := range translations {
			result[k] = v
		}
		return result
	}

	return make(map[string]string)
}

// HasTranslation checks if a translation key exists
func (t *Translator) HasTranslation(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if translations, ok := t.translations[t.currentLanguage]; ok {
		_, ok := translations[key]
		return ok
	}

	return false
}

// ValidateLanguage validates that a language is supported
func ValidateLanguage(language string) bool {
	return language == string(LanguageJapanese) || language == string(LanguageEnglish)
}

// DetectSystemLanguage picks Japanese when the locale environment says so
func DetectSystemLanguage() Language {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if value := os.Getenv(key); value != "" {
			if strings.HasPrefix(strings.ToLower(value), "ja") {
				return LanguageJapanese
			}
			return LanguageEnglish
		}
	}
	return LanguageEnglish
}

// GetSupportedLanguages returns a list of supported languages
func GetSupportedLanguages() []Language {
	return []Language{LanguageJapanese, LanguageEnglish}
}

// GlobalTranslator backs T and TF; set up in main.go
var GlobalTranslator *Translator

// T translates using the global translator
func T(key string) string {
	if GlobalTranslator == nil {
		return key
	}
	return GlobalTranslator.Translate(key)
}

// TF translates with formatting using the global translator
func TF(key string, params map[string]string) string {
	if GlobalTranslator == nil {
		return key
	}
	return GlobalTranslator.TranslateWithFormat(key, params)
}

//go:embed locales/*.json
var catalogs embed.FS

// LoadEmbedded loads the built-in catalogs for every supported language
func (t *Translator) LoadEmbedded() error {
	for _, language := range GetSupportedLanguages() {
		data, err := catalogs.ReadFile("locales/" + string(language) + ".json")
		if err != nil {
			return fmt.Errorf("failed to read catalog %s: %w", language, err)
		}
		if err := t.LoadTranslations(language, data); err != nil {
			return err
		}
	}
	return nil
}

// NewDefaultTranslator returns a translator with the built-in catalogs loaded.
// An unsupported language falls back to English.
func NewDefaultTranslator(language Language) (*Translator, error) {
	if !ValidateLanguage(string(language)) {
		language = LanguageEnglish
	}

	t := NewTranslator(language)
	if err := t.LoadEmbedded(); err != nil {
		return nil, err
	}
	return t, nil
}
