package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mirrordroid/mirrordroid/config"
	"github.com/mirrordroid/mirrordroid/i18n"
)

// SettingsRequest addresses the device's settings, or the defaults when DeviceID is empty.
type SettingsRequest struct {
	DeviceID string `json:"deviceId"`
}

func SettingsGetCommand(req SettingsRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.DeviceID == "" {
		return NewSuccessResponse(map[string]interface{}{
			"settings": r.Store.DefaultSettings(),
		})
	}

	return NewSuccessResponse(map[string]interface{}{
		"deviceId": req.DeviceID,
		"custom":   r.Store.HasDeviceSettings(req.DeviceID),
		"settings": r.Store.DeviceSettings(req.DeviceID),
	})
}

type SettingsSetRequest struct {
	DeviceID string `json:"deviceId"`
	// Settings replaces the whole settings block.
	Settings *config.Settings `json:"settings,omitempty"`
	// Values sets single options by dotted path, e.g. "video.max_size": "1024".
	Values map[string]string `json:"values,omitempty"`
}

// SettingsSetCommand stores settings for a device, or the defaults when DeviceID is empty.
// Values are applied on top of Settings, or on top of the current settings.
func SettingsSetCommand(req SettingsSetRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.Settings == nil && len(req.Values) == 0 {
		return NewErrorResponse(fmt.Errorf("settings or values are required"))
	}

	var settings config.Settings
	switch {
	case req.Settings != nil:
		settings = *req.Settings
	case req.DeviceID == "":
		settings = r.Store.DefaultSettings()
	default:
		settings = r.Store.DeviceSettings(req.DeviceID)
	}

	if len(req.Values) > 0 {
		settings, err = ApplySettingValues(settings, req.Values)
		if err != nil {
			return NewErrorResponse(err)
		}
	}

	if req.DeviceID == "" {
		err = r.Store.SetDefaultSettings(settings)
	} else {
		err = r.Store.SetDeviceSettings(req.DeviceID, settings)
	}
	if err != nil {
		return NewErrorResponse(fmt.Errorf("failed to save settings: %w", err))
	}

	return NewSuccessResponse(map[string]interface{}{
		"message":  r.Tr("messages.settings_saved"),
		"settings": settings,
	})
}

// ApplySettingValues sets options addressed by dotted JSON paths. Values of
// string options are taken as is, others are decoded as JSON ("1024", "true").
func ApplySettingValues(settings config.Settings, values map[string]string) (config.Settings, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return settings, err
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return settings, err
	}

	for path, raw := range values {
		if err := setPath(tree, path, raw); err != nil {
			return settings, err
		}
	}

	data, err = json.Marshal(tree)
	if err != nil {
		return settings, err
	}
	var out config.Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return settings, fmt.Errorf("invalid settings value: %w", err)
	}
	return out, nil
}

func setPath(tree map[string]interface{}, path string, raw string) error {
	parts := strings.Split(path, ".")
	node := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]interface{})
		if !ok {
			return fmt.Errorf("unknown setting: %s", path)
		}
		node = next
	}

	last := parts[len(parts)-1]
	if _, ok := node[last]; !ok {
		return fmt.Errorf("unknown setting: %s", path)
	}
	switch node[last].(type) {
	case map[string]interface{}:
		return fmt.Errorf("%s is a section, not a setting", path)
	case string:
		node[last] = raw
	default:
		node[last] = parseValue(raw)
	}
	return nil
}

func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// SettingsResetCommand drops the device's own settings so the defaults apply.
func SettingsResetCommand(req DeviceRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.DeviceID == "" {
		err = r.Store.SetDefaultSettings(config.DefaultSettings())
	} else {
		err = r.Store.ResetDeviceSettings(req.DeviceID)
	}
	if err != nil {
		return NewErrorResponse(fmt.Errorf("failed to save settings: %w", err))
	}

	return NewSuccessResponse(map[string]interface{}{
		"message": r.Tr("messages.settings_reset", i18n.Args{"device": req.DeviceID}),
	})
}

func CameraSettingsGetCommand(req DeviceRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.DeviceID == "" {
		return NewErrorResponse(fmt.Errorf("device ID is required"))
	}

	return NewSuccessResponse(map[string]interface{}{
		"deviceId": req.DeviceID,
		"camera":   r.Store.CameraSettings(req.DeviceID),
	})
}

type CameraSettingsSetRequest struct {
	DeviceID string               `json:"deviceId"`
	Camera   config.CameraProfile `json:"camera"`
}

func CameraSettingsSetCommand(req CameraSettingsSetRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.DeviceID == "" {
		return NewErrorResponse(fmt.Errorf("device ID is required"))
	}

	if err := r.Store.SetCameraSettings(req.DeviceID, req.Camera); err != nil {
		return NewErrorResponse(fmt.Errorf("failed to save camera settings: %w", err))
	}

	return NewSuccessResponse(map[string]interface{}{
		"message": r.Tr("messages.settings_saved"),
		"camera":  req.Camera,
	})
}

func AppSettingsGetCommand() *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(r.Store.AppSettings())
}

type AppSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AppSettingsSetCommand sets one app_settings key. Language changes go
// through the catalog so unsupported languages are rejected.
func AppSettingsSetCommand(req AppSettingRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.Key == "language" {
		return LanguageCommand(LanguageRequest{Language: req.Value})
	}

	if err := r.Store.SetAppSetting(req.Key, parseValue(req.Value)); err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(r.Store.AppSettings())
}

type LanguageRequest struct {
	Language string `json:"language"`
}

// LanguageCommand switches the interface language, or lists languages when none is given.
func LanguageCommand(req LanguageRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if r.Catalog == nil {
		return NewErrorResponse(fmt.Errorf("translations are not loaded"))
	}

	if req.Language != "" {
		if err := r.Catalog.SetLanguage(req.Language); err != nil {
			return NewErrorResponse(err)
		}
	}

	return NewSuccessResponse(map[string]interface{}{
		"message":   r.Tr("messages.language_changed", i18n.Args{"language": r.Catalog.Language()}),
		"language":  r.Catalog.Language(),
		"languages": r.Catalog.Languages(),
	})
}

type ProfileRequest struct {
	DeviceID string `json:"deviceId"`
	Path     string `json:"path"`
}

// SettingsExportCommand writes the device's settings, or the defaults, to a JSON or YAML file.
func SettingsExportCommand(req ProfileRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.Path == "" {
		return NewErrorResponse(fmt.Errorf("path is required"))
	}

	settings := r.Store.DefaultSettings()
	if req.DeviceID != "" {
		settings = r.Store.DeviceSettings(req.DeviceID)
	}

	if err := config.ExportProfile(req.Path, settings); err != nil {
		return NewErrorResponse(fmt.Errorf("failed to export settings: %w", err))
	}

	return NewSuccessResponse(map[string]interface{}{
		"path": req.Path,
	})
}

// SettingsImportCommand reads a profile and stores it for the device, or as the defaults.
func SettingsImportCommand(req ProfileRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.Path == "" {
		return NewErrorResponse(fmt.Errorf("path is required"))
	}

	settings, err := config.ImportProfile(req.Path)
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.DeviceID == "" {
		err = r.Store.SetDefaultSettings(settings)
	} else {
		err = r.Store.SetDeviceSettings(req.DeviceID, settings)
	}
	if err != nil {
		return NewErrorResponse(fmt.Errorf("failed to save settings: %w", err))
	}

	return NewSuccessResponse(map[string]interface{}{
		"message":  r.Tr("messages.settings_saved"),
		"settings": settings,
	})
}
