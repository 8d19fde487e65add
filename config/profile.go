package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mirrordroid/mirrordroid/utils"
	"gopkg.in/yaml.v3"
)

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ExportProfile writes settings as YAML or JSON depending on the extension.
func ExportProfile(path string, settings Settings) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(settings)
	} else {
		data, err = json.MarshalIndent(settings, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	return utils.WriteFileAtomic(path, data, 0644)
}

// ImportProfile reads a profile written by ExportProfile. Missing fields take default values.
func ImportProfile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	settings := DefaultSettings()
	if isYAML(path) {
		err = yaml.Unmarshal(data, &settings)
	} else {
		err = json.Unmarshal(data, &settings)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	return settings, nil
}
