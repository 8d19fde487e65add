package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// InputMode is the keyboard/mouse injection mode passed to scrcpy.
type InputMode string

const (
	InputDisabled InputMode = "disabled"
	InputUHID     InputMode = "uhid"
	InputAOA      InputMode = "aoa"
	InputSDK      InputMode = "sdk"
)

// Normalize maps older setting values onto current scrcpy modes.
// Unknown values disable the option.
func (m InputMode) Normalize() InputMode {
	switch strings.ToLower(strings.TrimSpace(string(m))) {
	case "uhid", "hack":
		return InputUHID
	case "aoa", "enabled", "aosp":
		return InputAOA
	case "sdk":
		return InputSDK
	default:
		return InputDisabled
	}
}

// GamepadMode accepts "aoa", "uhid", "disabled" and the boolean values
// older config files stored.
type GamepadMode string

const (
	GamepadDisabled GamepadMode = "disabled"
	GamepadAOA      GamepadMode = "aoa"
	GamepadUHID     GamepadMode = "uhid"
)

func (g GamepadMode) Normalize() GamepadMode {
	switch strings.ToLower(strings.TrimSpace(string(g))) {
	case "aoa", "true":
		return GamepadAOA
	case "uhid":
		return GamepadUHID
	default:
		return GamepadDisabled
	}
}

func (g *GamepadMode) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*g = gamepadFromBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("gamepad must be a string or boolean: %w", err)
	}
	*g = GamepadMode(s).Normalize()
	return nil
}

func (g *GamepadMode) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("gamepad must be a scalar, line %d", node.Line)
	}
	*g = GamepadMode(node.Value).Normalize()
	return nil
}

func gamepadFromBool(b bool) GamepadMode {
	if b {
		return GamepadAOA
	}
	return GamepadDisabled
}

type AppSettings struct {
	AlwaysOnTop     bool   `json:"always_on_top" yaml:"always_on_top"`
	AutoScanNetwork bool   `json:"auto_scan_network" yaml:"auto_scan_network"`
	ScanTimeout     int    `json:"scan_timeout" yaml:"scan_timeout"`
	AutoRefresh     bool   `json:"auto_refresh" yaml:"auto_refresh"`
	RefreshInterval int    `json:"refresh_interval" yaml:"refresh_interval"`
	Language        string `json:"language" yaml:"language"`
}

type VideoSettings struct {
	MaxSize    int    `json:"max_size" yaml:"max_size"`
	BitRate    int    `json:"bit_rate" yaml:"bit_rate"`
	MaxFPS     int    `json:"max_fps" yaml:"max_fps"`
	Codec      string `json:"codec" yaml:"codec"`
	Encoder    string `json:"encoder" yaml:"encoder"`
	BufferSize int    `json:"buffer_size" yaml:"buffer_size"`
}

type AudioSettings struct {
	Codec        string `json:"codec" yaml:"codec"`
	BitRate      int    `json:"bit_rate" yaml:"bit_rate"`
	BufferSize   int    `json:"buffer_size" yaml:"buffer_size"`
	DisableAudio bool   `json:"disable_audio" yaml:"disable_audio"`
}

type DisplaySettings struct {
	Rotation    int    `json:"rotation" yaml:"rotation"`
	Crop        string `json:"crop" yaml:"crop"`
	Fullscreen  bool   `json:"fullscreen" yaml:"fullscreen"`
	AlwaysOnTop bool   `json:"always_on_top" yaml:"always_on_top"`
	WindowTitle string `json:"window_title" yaml:"window_title"`
}

type ControlSettings struct {
	ShowTouches      bool        `json:"show_touches" yaml:"show_touches"`
	StayAwake        bool        `json:"stay_awake" yaml:"stay_awake"`
	TurnScreenOff    bool        `json:"turn_screen_off" yaml:"turn_screen_off"`
	Keyboard         InputMode   `json:"keyboard" yaml:"keyboard"`
	Mouse            InputMode   `json:"mouse" yaml:"mouse"`
	Gamepad          GamepadMode `json:"gamepad" yaml:"gamepad"`
	PreferText       bool        `json:"prefer_text" yaml:"prefer_text"`
	RawKeyEvents     bool        `json:"raw_key_events" yaml:"raw_key_events"`
	NoKeyRepeat      bool        `json:"no_key_repeat" yaml:"no_key_repeat"`
	ForwardAllClicks bool        `json:"forward_all_clicks" yaml:"forward_all_clicks"`
	LegacyPaste      bool        `json:"legacy_paste" yaml:"legacy_paste"`
}

type RecordSettings struct {
	File      string `json:"file" yaml:"file"`
	Format    string `json:"format" yaml:"format"`
	TimeLimit int    `json:"time_limit" yaml:"time_limit"`
}

type AdvancedSettings struct {
	OTG                  bool   `json:"otg" yaml:"otg"`
	DisableScreensaver   bool   `json:"disable_screensaver" yaml:"disable_screensaver"`
	PowerOffOnClose      bool   `json:"power_off_on_close" yaml:"power_off_on_close"`
	PowerOn              bool   `json:"power_on" yaml:"power_on"`
	StartFPS             int    `json:"start_fps" yaml:"start_fps"`
	LockVideoOrientation int    `json:"lock_video_orientation" yaml:"lock_video_orientation"`
	DisplayID            int    `json:"display_id" yaml:"display_id"`
	TCPIP                string `json:"tcpip" yaml:"tcpip"`
	SelectUSB            bool   `json:"select_usb" yaml:"select_usb"`
	SelectTCPIP          bool   `json:"select_tcpip" yaml:"select_tcpip"`
	ShortcutMod          string `json:"shortcut_mod" yaml:"shortcut_mod"`
}

// Settings is the full set of scrcpy mirroring options for one device.
type Settings struct {
	Video    VideoSettings    `json:"video" yaml:"video"`
	Audio    AudioSettings    `json:"audio" yaml:"audio"`
	Display  DisplaySettings  `json:"display" yaml:"display"`
	Control  ControlSettings  `json:"control" yaml:"control"`
	Record   RecordSettings   `json:"record" yaml:"record"`
	Advanced AdvancedSettings `json:"advanced" yaml:"advanced"`
}

// control keys that older files kept under "advanced"
var legacyControlKeys = []string{
	"keyboard", "mouse", "gamepad", "prefer_text", "raw_key_events",
	"no_key_repeat", "forward_all_clicks", "legacy_paste",
}

// UnmarshalJSON fills missing fields from DefaultSettings and moves input
// options stored under "advanced" by older versions into "control".
func (s *Settings) UnmarshalJSON(data []byte) error {
	type plain Settings
	p := plain(DefaultSettings())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw struct {
		Control  map[string]json.RawMessage `json:"control"`
		Advanced map[string]json.RawMessage `json:"advanced"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	legacy := map[string]json.RawMessage{}
	for _, key := range legacyControlKeys {
		if value, ok := raw.Advanced[key]; ok {
			if _, set := raw.Control[key]; !set {
				legacy[key] = value
			}
		}
	}
	if len(legacy) > 0 {
		data, err := json.Marshal(legacy)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &p.Control); err != nil {
			return fmt.Errorf("legacy control settings: %w", err)
		}
	}

	*s = Settings(p)
	return nil
}

func DefaultSettings() Settings {
	return Settings{
		Video: VideoSettings{
			BitRate: 8000000,
			Codec:   "h264",
		},
		Audio: AudioSettings{
			Codec:   "opus",
			BitRate: 128000,
		},
		Control: ControlSettings{
			Keyboard: InputDisabled,
			Mouse:    InputDisabled,
			Gamepad:  GamepadDisabled,
		},
		Record: RecordSettings{
			Format: "mp4",
		},
		Advanced: AdvancedSettings{
			LockVideoOrientation: -1,
			ShortcutMod:          "lctrl,lalt,lsuper",
		},
	}
}

func DefaultAppSettings() AppSettings {
	return AppSettings{
		AlwaysOnTop:     true,
		AutoScanNetwork: true,
		ScanTimeout:     5,
		AutoRefresh:     true,
		RefreshInterval: 5,
		Language:        "en",
	}
}

type CameraOptions struct {
	CameraID        string `json:"camera_id" yaml:"camera_id"`
	CameraSize      string `json:"camera_size" yaml:"camera_size"`
	CameraFPS       int    `json:"camera_fps" yaml:"camera_fps"`
	CameraFacing    string `json:"camera_facing" yaml:"camera_facing"`
	CameraAR        string `json:"camera_ar" yaml:"camera_ar"`
	CameraHighSpeed bool   `json:"camera_high_speed" yaml:"camera_high_speed"`
	CameraNoAudio   bool   `json:"camera_no_audio" yaml:"camera_no_audio"`
}

type CameraDisplay struct {
	Rotation    int    `json:"rotation" yaml:"rotation"`
	Crop        string `json:"crop" yaml:"crop"`
	Fullscreen  bool   `json:"fullscreen" yaml:"fullscreen"`
	AlwaysOnTop bool   `json:"always_on_top" yaml:"always_on_top"`
	Flip        bool   `json:"flip" yaml:"flip"`
}

// V4L2Settings routes the camera stream into a loopback device (Linux only).
type V4L2Settings struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Device     string `json:"device" yaml:"device"`
	Buffers    int    `json:"buffers" yaml:"buffers"`
	NoPlayback bool   `json:"no_playback" yaml:"no_playback"`
}

// CameraProfile holds the options used when a device camera is the video source.
type CameraProfile struct {
	Camera  CameraOptions `json:"camera" yaml:"camera"`
	Display CameraDisplay `json:"display" yaml:"display"`
	V4L2    V4L2Settings  `json:"v4l2" yaml:"v4l2"`
}

// UnmarshalJSON also accepts the flat layout ({"camera_id": ..., "camera_fps": ...})
// written by older versions.
func (c *CameraProfile) UnmarshalJSON(data []byte) error {
	type plain CameraProfile
	p := plain(DefaultCameraProfile())

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	_, nested := keys["camera"]
	if !nested && hasFlatCameraKeys(keys) {
		if err := json.Unmarshal(data, &p.Camera); err != nil {
			return err
		}
		*c = CameraProfile(p)
		return nil
	}

	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = CameraProfile(p)
	return nil
}

func hasFlatCameraKeys(keys map[string]json.RawMessage) bool {
	for key := range keys {
		if strings.HasPrefix(key, "camera_") {
			return true
		}
	}
	return false
}

func DefaultCameraProfile() CameraProfile {
	return CameraProfile{
		Camera: CameraOptions{
			CameraFPS:    30,
			CameraFacing: "back",
		},
		V4L2: V4L2Settings{
			Device:     "/dev/video0",
			Buffers:    3,
			NoPlayback: true,
		},
	}
}

// DeviceEntry is a remembered device with optional per-device overrides.
type DeviceEntry struct {
	ID             string         `json:"id" yaml:"id"`
	Model          string         `json:"model,omitempty" yaml:"model,omitempty"`
	Name           string         `json:"name,omitempty" yaml:"name,omitempty"`
	ScrcpySettings *Settings      `json:"scrcpy_settings,omitempty" yaml:"scrcpy_settings,omitempty"`
	CameraSettings *CameraProfile `json:"camera_settings,omitempty" yaml:"camera_settings,omitempty"`
}

func (d DeviceEntry) clone() DeviceEntry {
	out := d
	if d.ScrcpySettings != nil {
		s := *d.ScrcpySettings
		out.ScrcpySettings = &s
	}
	if d.CameraSettings != nil {
		c := *d.CameraSettings
		out.CameraSettings = &c
	}
	return out
}

// File is the on-disk layout of config.json.
type File struct {
	AppSettings    AppSettings   `json:"app_settings" yaml:"app_settings"`
	Devices        []DeviceEntry `json:"devices" yaml:"devices"`
	ScrcpyDefaults Settings      `json:"scrcpy_defaults" yaml:"scrcpy_defaults"`
}

func DefaultFile() File {
	return File{
		AppSettings:    DefaultAppSettings(),
		Devices:        []DeviceEntry{},
		ScrcpyDefaults: DefaultSettings(),
	}
}

func (f File) clone() File {
	out := f
	out.Devices = make([]DeviceEntry, len(f.Devices))
	for i, d := range f.Devices {
		out.Devices[i] = d.clone()
	}
	return out
}
