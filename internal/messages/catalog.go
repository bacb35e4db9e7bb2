// Package messages resolves localized reply text for outbound notifications.
package messages

import (
	"encoding/json"
	"fmt"
	"os"
)

// Reply categories known to the catalog.
const (
	CategoryInvite    = "invite"
	CategoryAskForGeo = "askforgeo"
)

// Catalog holds reply text keyed by category and language code.
type Catalog struct {
	texts           map[string]map[string]string
	defaultLanguage string
}

// Load reads a catalog from a JSON file of the form
// {"invite": {"en": "...", "ta": "..."}, "askforgeo": {...}}.
func Load(path, defaultLanguage string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message catalog: %w", err)
	}

	var texts map[string]map[string]string
	if err := json.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("failed to parse message catalog: %w", err)
	}

	return NewCatalog(texts, defaultLanguage), nil
}

// NewCatalog builds a catalog from an in-memory mapping.
func NewCatalog(texts map[string]map[string]string, defaultLanguage string) *Catalog {
	return &Catalog{
		texts:           texts,
		defaultLanguage: defaultLanguage,
	}
}

// Resolve returns the text for the given category in the requested language,
// falling back to the default language. An empty string and an error are
// returned when neither language has text for the category.
func (c *Catalog) Resolve(category, language string) (string, error) {
	byLang, ok := c.texts[category]
	if !ok {
		return "", fmt.Errorf("no messages for category %q", category)
	}

	if text, ok := byLang[language]; ok && text != "" {
		return text, nil
	}

	if text, ok := byLang[c.defaultLanguage]; ok && text != "" {
		return text, nil
	}

	return "", fmt.Errorf("no %q message for language %q or default %q",
		category, language, c.defaultLanguage)
}
