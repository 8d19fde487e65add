package commands

import (
	"context"
	"testing"

	"github.com/mirrordroid/mirrordroid/config"
	"github.com/mirrordroid/mirrordroid/scrcpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirrorStartAndStop(t *testing.T) {
	env := newTestEnv(t)

	settings := config.DefaultSettings()
	settings.Video.MaxSize = 1280
	require.NoError(t, env.rt.Store.SetDeviceSettings("R58M123ABC", settings))

	// the only ready device is picked when no id is given
	response := MirrorStartCommand(context.Background(), MirrorStartRequest{})
	require.Equal(t, "ok", response.Status, response.Error)

	resp := response.Data.(*SessionResponse)
	assert.Equal(t, "R58M123ABC", resp.Session.DeviceID)
	assert.Equal(t, scrcpy.KindMirror, resp.Session.Kind)
	assert.Subset(t, resp.Session.Args, []string{"--max-size", "1280"})
	assert.True(t, env.rt.Scrcpy.IsRunning("R58M123ABC"))

	response = MirrorStartCommand(context.Background(), MirrorStartRequest{DeviceID: "R58M123ABC"})
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, "scrcpy is already running for R58M123ABC", response.Error)

	response = MirrorStatusCommand(DeviceRequest{DeviceID: "R58M123ABC"})
	require.Equal(t, "ok", response.Status)
	assert.Equal(t, true, response.Data.(map[string]interface{})["running"])

	response = MirrorStopCommand(DeviceRequest{DeviceID: "R58M123ABC"})
	require.Equal(t, "ok", response.Status, response.Error)
	assert.False(t, env.rt.Scrcpy.IsRunning("R58M123ABC"))

	response = MirrorStopCommand(DeviceRequest{DeviceID: "R58M123ABC"})
	assert.Equal(t, "error", response.Status)
	assert.Contains(t, response.Error, scrcpy.ErrNotRunning.Error())
}

func TestMirrorStart_RequiresReadyDevice(t *testing.T) {
	env := newTestEnv(t)

	response := MirrorStartCommand(context.Background(), MirrorStartRequest{DeviceID: "emulator-5554"})
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, "device emulator-5554 is offline", response.Error)
	assert.Empty(t, env.rt.Scrcpy.ActiveDevices())
}

func TestMirrorStopAllCommand(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.rt.StartMirror(context.Background(), "R58M123ABC")
	require.NoError(t, err)

	response := MirrorStopAllCommand()
	require.Equal(t, "ok", response.Status)
	data := response.Data.(map[string]interface{})
	assert.Equal(t, []string{"R58M123ABC"}, data["stopped"])
	assert.Empty(t, env.rt.Scrcpy.ActiveDevices())

	response = MirrorStatusCommand(DeviceRequest{})
	require.Equal(t, "ok", response.Status)
	assert.Empty(t, response.Data.(map[string]interface{})["sessions"])
}

func TestCameraStart(t *testing.T) {
	env := newTestEnv(t)

	profile := config.DefaultCameraProfile()
	profile.Camera.CameraID = "1"
	profile.Camera.CameraFPS = 30

	resp, err := env.rt.StartCamera(context.Background(), CameraStartRequest{
		DeviceID: "R58M123ABC",
		Profile:  &profile,
		Save:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, scrcpy.KindCamera, resp.Session.Kind)
	assert.Contains(t, resp.Session.Args, "--video-source=camera")
	assert.Subset(t, resp.Session.Args, []string{"--camera-id", "1"})
	assert.Equal(t, "1", env.rt.Store.CameraSettings("R58M123ABC").Camera.CameraID)

	// one session per device, mirror or camera
	_, err = env.rt.StartMirror(context.Background(), "R58M123ABC")
	assert.Error(t, err)
}

func TestCameraStart_HighSpeedNeedsFPS(t *testing.T) {
	env := newTestEnv(t)

	profile := config.DefaultCameraProfile()
	profile.Camera.CameraHighSpeed = true
	profile.Camera.CameraFPS = 60

	response := CameraStartCommand(context.Background(), CameraStartRequest{
		DeviceID: "R58M123ABC",
		Profile:  &profile,
		Save:     true,
	})
	assert.Equal(t, "error", response.Status)
	assert.Contains(t, response.Error, "High-speed mode requires at least 120 fps")
	assert.ErrorIs(t, scrcpy.ValidateCamera(profile), scrcpy.ErrHighSpeedFPS)

	// nothing is saved or started
	assert.False(t, env.rt.Store.CameraSettings("R58M123ABC").Camera.CameraHighSpeed)
	assert.Empty(t, env.rt.Scrcpy.ActiveDevices())
}

const listCamerasOutput = `[server] INFO: List of cameras:
    --camera-id=0    (back, 4032x3024, fps=[15, 24, 30, 60])
    --camera-id=1    (front, 3648x2736, fps=[15, 30])
`

func TestCameraListCommand(t *testing.T) {
	env := newTestEnv(t)
	env.scrcpy.set("-s R58M123ABC --list-cameras", listCamerasOutput)

	response := CameraListCommand(context.Background(), DeviceRequest{DeviceID: "R58M123ABC"})
	require.Equal(t, "ok", response.Status, response.Error)

	data := response.Data.(map[string]interface{})
	cameras := data["cameras"].([]scrcpy.Camera)
	require.Len(t, cameras, 2)
	assert.Equal(t, "front", cameras[1].Facing)
	assert.NotContains(t, data, "message")

	env.scrcpy.set("-s R58M123ABC --list-cameras", "")
	response = CameraListCommand(context.Background(), DeviceRequest{DeviceID: "R58M123ABC"})
	require.Equal(t, "ok", response.Status)
	assert.Contains(t, response.Data.(map[string]interface{}), "message")
}
