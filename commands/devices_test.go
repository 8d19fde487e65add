package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/mirrordroid/mirrordroid/config"
	"github.com/mirrordroid/mirrordroid/devices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findStatus(t *testing.T, resp *DevicesResponse, id string) DeviceStatus {
	t.Helper()
	for _, d := range resp.Devices {
		if d.ID == id {
			return d
		}
	}
	t.Fatalf("device %s not listed", id)
	return DeviceStatus{}
}

func TestDevicesCommand(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.rt.Store.SetDeviceSettings("R58M123ABC", config.DefaultSettings()))

	response := DevicesCommand(context.Background(), DevicesRequest{})
	require.Equal(t, "ok", response.Status, response.Error)

	resp := response.Data.(*DevicesResponse)
	require.Len(t, resp.Devices, 2)
	assert.Equal(t, 1, resp.Authorized)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 0, resp.Active)

	phone := findStatus(t, resp, "R58M123ABC")
	assert.Equal(t, "real", phone.Type)
	assert.True(t, phone.CustomSettings)
	assert.True(t, phone.Remembered)
	assert.False(t, phone.Running)

	emulator := findStatus(t, resp, "emulator-5554")
	assert.Equal(t, "emulator", emulator.Type)
	assert.Equal(t, devices.UnknownValue, emulator.Model)
}

func TestDevicesCommand_AllListsRememberedDevices(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.rt.Store.AddDevice(config.DeviceEntry{ID: "192.168.1.77:5555", Model: "Pixel 7"}))

	resp, err := env.rt.ListDevices(context.Background(), true)
	require.NoError(t, err)

	remembered := findStatus(t, resp, "192.168.1.77:5555")
	assert.Equal(t, devices.StatusOffline, remembered.Status)
	assert.Equal(t, "Pixel 7", remembered.Model)
	assert.Equal(t, devices.UnknownValue, remembered.Name)
	assert.True(t, remembered.Remembered)
	assert.Equal(t, devices.ConnectionWireless, remembered.ConnectionType)

	resp, err = env.rt.ListDevices(context.Background(), false)
	require.NoError(t, err)
	for _, d := range resp.Devices {
		assert.NotEqual(t, "192.168.1.77:5555", d.ID)
	}
}

func TestDevicesCommand_AdbFailure(t *testing.T) {
	env := newTestEnv(t)
	env.adb.errs["devices -l"] = errors.New("adb server version mismatch")

	response := DevicesCommand(context.Background(), DevicesRequest{})
	assert.Equal(t, "error", response.Status)
	assert.Contains(t, response.Error, "error getting devices")
}

func TestDeviceInfoCommand(t *testing.T) {
	newTestEnv(t)

	response := DeviceInfoCommand(context.Background(), DeviceRequest{DeviceID: "R58M123ABC"})
	require.Equal(t, "ok", response.Status, response.Error)

	data := response.Data.(map[string]interface{})
	status := data["device"].(DeviceStatus)
	assert.Equal(t, "R58M123ABC", status.ID)
	assert.Equal(t, config.DefaultSettings(), data["settings"])
	assert.Equal(t, config.DefaultCameraProfile(), data["camera"])

	response = DeviceInfoCommand(context.Background(), DeviceRequest{DeviceID: "nope"})
	assert.Equal(t, "error", response.Status)
}

func TestConnect_RemembersDeviceAndKeepsSettings(t *testing.T) {
	env := newTestEnv(t)
	const id = "192.168.1.50:5555"

	settings := config.DefaultSettings()
	settings.Video.MaxSize = 1024
	require.NoError(t, env.rt.Store.SetDeviceSettings(id, settings))

	env.adb.set("connect "+id, "connected to "+id+"\n")
	env.adb.set("devices -l", devicesOutput+id+" device product:sunfish model:Pixel_4a device:sunfish transport_id:5\n")

	response := ConnectCommand(context.Background(), ConnectRequest{Address: "192.168.1.50"})
	require.Equal(t, "ok", response.Status, response.Error)

	data := response.Data.(map[string]interface{})
	assert.Equal(t, id, data["deviceId"])
	assert.Equal(t, "Connected to "+id, data["message"])

	var entry config.DeviceEntry
	for _, d := range env.rt.Store.Devices() {
		if d.ID == id {
			entry = d
		}
	}
	assert.Equal(t, "Pixel 4a", entry.Model)
	assert.Equal(t, "sunfish", entry.Name)
	assert.Equal(t, 1024, env.rt.Store.DeviceSettings(id).Video.MaxSize)
}

func TestConnect_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.adb.set("connect 10.0.0.9:5555", "failed to connect to '10.0.0.9:5555': Connection refused\n")

	_, err := env.rt.Connect(context.Background(), "10.0.0.9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Connection to 10.0.0.9:5555 failed")
	assert.Empty(t, env.rt.Store.Devices())

	_, err = env.rt.Connect(context.Background(), "10.0.0.9:99999")
	assert.ErrorIs(t, err, devices.ErrInvalidPort)

	_, err = env.rt.Connect(context.Background(), "")
	assert.ErrorIs(t, err, devices.ErrInvalidAddress)
}

func TestDisconnectCommand(t *testing.T) {
	env := newTestEnv(t)
	const id = "192.168.1.50:5555"
	env.adb.set("disconnect "+id, "disconnected "+id+"\n")

	response := DisconnectCommand(context.Background(), DeviceRequest{DeviceID: id})
	require.Equal(t, "ok", response.Status, response.Error)
	assert.True(t, env.adb.called("disconnect "+id))

	env.adb.errs["disconnect 10.0.0.1:5555"] = errors.New("exit status 1")
	response = DisconnectCommand(context.Background(), DeviceRequest{DeviceID: "10.0.0.1:5555"})
	assert.Equal(t, "error", response.Status)
	assert.Contains(t, response.Error, "Failed to disconnect 10.0.0.1:5555")

	response = DisconnectCommand(context.Background(), DeviceRequest{})
	assert.Equal(t, "error", response.Status)
}

func TestForgetCommand(t *testing.T) {
	env := newTestEnv(t)
	const id = "192.168.1.50:5555"
	require.NoError(t, env.rt.Store.AddDevice(config.DeviceEntry{ID: id, Model: "Pixel 4a"}))

	response := ForgetCommand(context.Background(), DeviceRequest{DeviceID: id})
	require.Equal(t, "ok", response.Status, response.Error)
	assert.Equal(t, true, response.Data.(map[string]interface{})["removed"])
	assert.Empty(t, env.rt.Store.Devices())
	assert.False(t, env.adb.called("disconnect "+id))

	response = ForgetCommand(context.Background(), DeviceRequest{DeviceID: id})
	require.Equal(t, "ok", response.Status)
	assert.Equal(t, false, response.Data.(map[string]interface{})["removed"])
}
