// Package localization provides the user-facing strings in the languages
// the app ships. Built-in defaults cover French and English; a directory of
// JSON files (one per language code, e.g. "fr.json") can override or extend
// them.
package localization

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// The app launched in France, so French is the fallback language.
const DefaultLang = "fr"

var defaults = map[string]map[string]string{
	"fr": {
		"notice.request_duplicate": "Demande déjà envoyée",
		"notice.request_resolved":  "Demande déjà traitée",
		"notice.report_received":   "Signalement enregistré",
		"notice.place_match":       "Vous avez trouvé un lieu !",
	},
	"en": {
		"notice.request_duplicate": "Request already sent",
		"notice.request_resolved":  "Request already handled",
		"notice.report_received":   "Report received",
		"notice.place_match":       "You found a place!",
	},
}

// Localizer manages the translations for the application.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewLocalizer returns a Localizer carrying the built-in strings.
func NewLocalizer() *Localizer {
	l := &Localizer{translations: make(map[string]map[string]string)}
	for lang, strs := range defaults {
		table := make(map[string]string, len(strs))
		for k, v := range strs {
			table[k] = v
		}
		l.translations[lang] = table
	}
	return l
}

// LoadDir merges translation files from a directory over the built-ins.
// Files are named with the language code (e.g. "en.json").
func (l *Localizer) LoadDir(path string) error {
	files, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read localization directory: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		data, err := os.ReadFile(filepath.Join(path, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		if l.translations[lang] == nil {
			l.translations[lang] = make(map[string]string)
		}
		for k, v := range translations {
			l.translations[lang][k] = v
		}
	}
	return nil
}

// GetString returns the localized string for a given key and language.
// Unknown languages fall back to French; an unknown key comes back as the
// key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if langTranslations, ok := l.translations[lang]; ok {
		if value, ok := langTranslations[key]; ok {
			return value
		}
	}

	if lang != DefaultLang {
		if frTranslations, ok := l.translations[DefaultLang]; ok {
			if value, ok := frTranslations[key]; ok {
				return value
			}
		}
	}

	return key
}
