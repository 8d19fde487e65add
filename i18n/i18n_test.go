package i18n

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTr(t *testing.T) {
	c, err := NewCatalog("en")
	require.NoError(t, err)

	assert.Equal(t, "scrcpy started for R58M", c.Tr("messages.scrcpy_started", Args{"device": "R58M"}))
	assert.Equal(t, "Found 3 device(s)", c.Tr("messages.refreshed", Args{"count": 3}))
	assert.Equal(t, "MirrorDroid", c.Tr("app.title"))
}

func TestTr_Fallbacks(t *testing.T) {
	c, err := NewCatalog("ru")
	require.NoError(t, err)
	assert.Equal(t, "Готово", c.Tr("status.ready"))

	// missing in ru: English
	delete(c.translations["ru"]["status"].(map[string]any), "ready")
	assert.Equal(t, "Ready", c.Tr("status.ready"))

	// missing everywhere: the key
	assert.Equal(t, "messages.nope", c.Tr("messages.nope"))
	// a section is not a message
	assert.Equal(t, "messages", c.Tr("messages"))
}

func TestNewCatalog_UnknownLanguage(t *testing.T) {
	c, err := NewCatalog("xx")
	require.NoError(t, err)
	assert.Equal(t, "en", c.Language())
	assert.Equal(t, []string{"en", "ru"}, c.Languages())
}

func TestSetLanguage(t *testing.T) {
	c, err := NewCatalog("en")
	require.NoError(t, err)

	var persisted string
	c.OnLanguageChange(func(lang string) error {
		persisted = lang
		return nil
	})

	require.NoError(t, c.SetLanguage("ru"))
	assert.Equal(t, "ru", c.Language())
	assert.Equal(t, "ru", persisted)

	assert.Error(t, c.SetLanguage("de"))
	assert.Equal(t, "ru", c.Language())

	c.OnLanguageChange(func(string) error { return errors.New("disk full") })
	assert.Error(t, c.SetLanguage("en"))
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	c, err := NewCatalog("en")
	require.NoError(t, err)

	var walk func(prefix string, tree map[string]any, out map[string]bool)
	walk = func(prefix string, tree map[string]any, out map[string]bool) {
		for k, v := range tree {
			if sub, ok := v.(map[string]any); ok {
				walk(prefix+k+".", sub, out)
				continue
			}
			out[prefix+k] = true
		}
	}

	en, ru := map[string]bool{}, map[string]bool{}
	walk("", c.translations["en"], en)
	walk("", c.translations["ru"], ru)
	assert.Equal(t, en, ru)
}

func TestDefaultCatalog(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	c, err := NewCatalog("ru")
	require.NoError(t, err)
	SetDefault(c)
	assert.Equal(t, "Готово", Tr("status.ready"))
}
