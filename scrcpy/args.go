package scrcpy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mirrordroid/mirrordroid/config"
)

// ErrHighSpeedFPS is returned when high-speed capture is requested below 120 fps.
var ErrHighSpeedFPS = errors.New("high-speed camera mode requires at least 120 fps")

// argList appends flags, skipping ones that may only appear once.
type argList struct {
	args []string
	seen map[string]bool
}

func newArgList(deviceID string) *argList {
	return &argList{
		args: []string{"-s", deviceID},
		seen: map[string]bool{},
	}
}

func (l *argList) add(args ...string) {
	l.args = append(l.args, args...)
}

func (l *argList) addOnce(flag string) {
	if l.seen[flag] {
		return
	}
	l.seen[flag] = true
	l.args = append(l.args, flag)
}

func (l *argList) addInt(flag string, value int) {
	l.args = append(l.args, flag, strconv.Itoa(value))
}

// BuildMirrorArgs converts mirroring settings into scrcpy arguments
// (without the executable itself).
func BuildMirrorArgs(deviceID string, s config.Settings, debug bool) []string {
	l := newArgList(deviceID)

	video := s.Video
	if video.MaxSize > 0 {
		l.addInt("--max-size", video.MaxSize)
	}
	if video.BitRate > 0 {
		l.addInt("--video-bit-rate", video.BitRate)
	}
	if video.MaxFPS > 0 {
		l.addInt("--max-fps", video.MaxFPS)
	}
	if video.Codec != "" {
		l.add("--video-codec", video.Codec)
	}
	if video.Encoder != "" {
		l.add("--video-encoder", video.Encoder)
	}
	if video.BufferSize > 0 {
		l.addInt("--video-buffer", video.BufferSize)
	}

	audio := s.Audio
	if audio.DisableAudio {
		l.add("--no-audio")
	} else {
		if audio.Codec != "" {
			l.add("--audio-codec", audio.Codec)
		}
		if audio.BitRate > 0 {
			l.addInt("--audio-bit-rate", audio.BitRate)
		}
		if audio.BufferSize > 0 {
			l.addInt("--audio-buffer", audio.BufferSize)
		}
	}

	display := s.Display
	if display.Rotation != 0 {
		l.addInt("--display-orientation", display.Rotation)
	}
	if display.Crop != "" {
		l.add("--crop", display.Crop)
	}
	if display.Fullscreen {
		l.add("--fullscreen")
	}
	if display.AlwaysOnTop {
		l.addOnce("--always-on-top")
	}
	if display.WindowTitle != "" {
		l.add("--window-title", display.WindowTitle)
	}

	control := s.Control
	if control.ShowTouches {
		l.add("--show-touches")
	}
	if control.StayAwake {
		l.add("--stay-awake")
	}
	if control.TurnScreenOff {
		l.add("--turn-screen-off")
	}

	keyboard := control.Keyboard.Normalize()
	if keyboard != config.InputDisabled {
		l.add("--keyboard=" + string(keyboard))
	}
	if mouse := control.Mouse.Normalize(); mouse != config.InputDisabled {
		l.add("--mouse=" + string(mouse))
	}
	if gamepad := control.Gamepad.Normalize(); gamepad != config.GamepadDisabled {
		l.add("--gamepad=" + string(gamepad))
	}

	// --prefer-text is only accepted together with the sdk keyboard
	if keyboard == config.InputSDK && control.PreferText {
		l.add("--prefer-text")
		if control.LegacyPaste {
			l.addOnce("--legacy-paste")
		}
	} else if control.RawKeyEvents {
		l.add("--raw-key-events")
	}
	if control.NoKeyRepeat {
		l.add("--no-key-repeat")
	}
	if control.ForwardAllClicks {
		l.add("--forward-all-clicks")
	}
	if control.LegacyPaste {
		l.addOnce("--legacy-paste")
	}

	record := s.Record
	if record.File != "" {
		l.add("--record", record.File)
		if record.Format != "" {
			l.add("--record-format", record.Format)
		}
		if record.TimeLimit > 0 {
			l.addInt("--time-limit", record.TimeLimit)
		}
	}

	adv := s.Advanced
	if adv.OTG {
		l.add("--otg")
	}
	if adv.DisableScreensaver {
		l.add("--disable-screensaver")
	}
	if adv.PowerOffOnClose {
		l.add("--power-off-on-close")
	}
	if adv.PowerOn {
		l.add("--power-on")
	}
	if adv.StartFPS > 0 {
		l.addInt("--start-fps", adv.StartFPS)
	}
	if adv.LockVideoOrientation != -1 {
		l.addInt("--lock-video-orientation", adv.LockVideoOrientation)
	}
	if adv.DisplayID > 0 {
		l.addInt("--display-id", adv.DisplayID)
	}
	if adv.TCPIP != "" {
		l.add("--tcpip", adv.TCPIP)
	}
	if adv.SelectUSB {
		l.add("--select-usb")
	}
	if adv.SelectTCPIP {
		l.add("--select-tcpip")
	}
	if adv.ShortcutMod != "" {
		l.add("--shortcut-mod", adv.ShortcutMod)
	}

	if debug {
		l.add("-V", "debug")
	}

	return l.args
}

// ValidateCamera checks option combinations scrcpy would reject.
func ValidateCamera(p config.CameraProfile) error {
	if p.Camera.CameraHighSpeed && p.Camera.CameraFPS < 120 {
		return fmt.Errorf("%w (got %d)", ErrHighSpeedFPS, p.Camera.CameraFPS)
	}
	return nil
}

func isAutoAspectRatio(ar string) bool {
	ar = strings.TrimSpace(ar)
	return ar == "" || strings.EqualFold(ar, "auto")
}

// BuildCameraArgs converts a camera profile into scrcpy arguments.
// goos selects whether the v4l2 sink options apply.
func BuildCameraArgs(deviceID string, p config.CameraProfile, goos string, debug bool) []string {
	l := newArgList(deviceID)
	l.add("--video-source=camera")

	camera := p.Camera
	if camera.CameraNoAudio {
		l.add("--no-audio")
	}
	if camera.CameraID != "" {
		l.add("--camera-id", camera.CameraID)
	}
	// in high-speed mode scrcpy picks a compatible size itself
	if camera.CameraSize != "" && !camera.CameraHighSpeed {
		l.add("--camera-size", camera.CameraSize)
	}
	if camera.CameraFPS > 0 {
		l.addInt("--camera-fps", camera.CameraFPS)
	}
	if !isAutoAspectRatio(camera.CameraAR) {
		l.add("--camera-ar", camera.CameraAR)
	}
	if camera.CameraHighSpeed {
		l.add("--camera-high-speed")
	}

	display := p.Display
	if display.Flip {
		l.add("--display-orientation", "flip"+strconv.Itoa(display.Rotation))
	} else if display.Rotation != 0 {
		l.addInt("--display-orientation", display.Rotation)
	}
	if display.Crop != "" {
		l.add("--crop", display.Crop)
	}
	if display.Fullscreen {
		l.add("--fullscreen")
	}
	if display.AlwaysOnTop {
		l.addOnce("--always-on-top")
	}

	v4l2 := p.V4L2
	if goos == "linux" && v4l2.Enabled && v4l2.Device != "" {
		l.add("--v4l2-sink", v4l2.Device)
		if v4l2.NoPlayback {
			l.add("--no-video-playback")
		}
		if v4l2.Buffers > 0 {
			// roughly one frame at 30 fps per buffer
			l.addInt("--v4l2-buffer", v4l2.Buffers*33)
		}
	}

	if debug {
		l.add("-V", "debug")
	}

	return l.args
}
