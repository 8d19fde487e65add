// Package i18n translates user-facing messages. Catalogs are embedded
// JSON files with nested sections addressed by dotted keys.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/mirrordroid/mirrordroid/utils"
)

const DefaultLanguage = "en"

//go:embed locales/*.json
var locales embed.FS

// Args fills {name} placeholders.
type Args map[string]any

type Catalog struct {
	mu           sync.RWMutex
	language     string
	translations map[string]map[string]any
	persist      func(language string) error
}

// NewCatalog loads the embedded catalogs and selects language, falling
// back to English when it is not available.
func NewCatalog(language string) (*Catalog, error) {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, err
	}

	c := &Catalog{translations: map[string]map[string]any{}}
	for _, entry := range entries {
		data, err := locales.ReadFile(path.Join("locales", entry.Name()))
		if err != nil {
			return nil, err
		}
		var tree map[string]any
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("invalid catalog %s: %w", entry.Name(), err)
		}
		c.translations[strings.TrimSuffix(entry.Name(), ".json")] = tree
	}

	c.language = DefaultLanguage
	if _, ok := c.translations[language]; ok {
		c.language = language
	} else if language != "" {
		utils.Verbose("Language %s not supported, using %s", language, DefaultLanguage)
	}
	return c, nil
}

// OnLanguageChange sets the function that persists the selected language.
func (c *Catalog) OnLanguageChange(persist func(language string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persist = persist
}

func (c *Catalog) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	langs := make([]string, 0, len(c.translations))
	for lang := range c.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// SetLanguage switches language and persists it. Unknown languages are rejected.
func (c *Catalog) SetLanguage(language string) error {
	c.mu.Lock()
	if _, ok := c.translations[language]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("language %s is not supported", language)
	}
	c.language = language
	persist := c.persist
	c.mu.Unlock()

	utils.Verbose("Language changed to: %s", language)
	if persist != nil {
		return persist(language)
	}
	return nil
}

// Tr resolves key in the current language, then in English, then returns the key itself.
func (c *Catalog) Tr(key string, args ...Args) string {
	c.mu.RLock()
	text, ok := lookup(c.translations[c.language], key)
	if !ok {
		text, ok = lookup(c.translations[DefaultLanguage], key)
	}
	c.mu.RUnlock()

	if !ok {
		return key
	}

	for _, a := range args {
		for name, value := range a {
			text = strings.ReplaceAll(text, "{"+name+"}", fmt.Sprint(value))
		}
	}
	return text
}

func lookup(tree map[string]any, key string) (string, bool) {
	var node any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return "", false
		}
		node, ok = m[part]
		if !ok {
			return "", false
		}
	}
	text, ok := node.(string)
	return text, ok
}

var (
	defaultMu      sync.RWMutex
	defaultCatalog *Catalog
)

func init() {
	c, err := NewCatalog(DefaultLanguage)
	if err != nil {
		panic(err)
	}
	defaultCatalog = c
}

// Default returns the process-wide catalog.
func Default() *Catalog {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultCatalog
}

// SetDefault replaces the process-wide catalog.
func SetDefault(c *Catalog) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultCatalog = c
}

// Tr translates with the process-wide catalog.
func Tr(key string, args ...Args) string {
	return Default().Tr(key, args...)
}
