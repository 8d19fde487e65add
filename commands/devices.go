package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/mirrordroid/mirrordroid/config"
	"github.com/mirrordroid/mirrordroid/devices"
	"github.com/mirrordroid/mirrordroid/i18n"
	"github.com/mirrordroid/mirrordroid/scrcpy"
	"github.com/mirrordroid/mirrordroid/utils"
)

// DeviceStatus is a device as shown in listings: the adb view plus the
// session and settings state kept by MirrorDroid.
type DeviceStatus struct {
	devices.Device
	Type           string      `json:"type"`
	Running        bool        `json:"running"`
	Kind           scrcpy.Kind `json:"kind,omitempty"`
	CustomSettings bool        `json:"custom_settings"`
	Remembered     bool        `json:"remembered"`
}

type DevicesRequest struct {
	// All adds offline emulators and remembered devices that are not connected.
	All bool `json:"all"`
}

type DevicesResponse struct {
	Devices    []DeviceStatus `json:"devices"`
	Authorized int            `json:"authorized"`
	Total      int            `json:"total"`
	Active     int            `json:"active"`
}

func (r *Runtime) deviceStatus(d devices.Device, remembered map[string]bool) DeviceStatus {
	status := DeviceStatus{
		Device:         d,
		Type:           d.Type(),
		CustomSettings: r.Store.HasDeviceSettings(d.ID),
		Remembered:     remembered[d.ID],
	}
	if session, ok := r.Scrcpy.Session(d.ID); ok {
		status.Running = true
		status.Kind = session.Kind
	}
	return status
}

// ListDevices lists devices with their session state. It is shared by the
// devices command, the server auto-refresh and the terminal UI.
func (r *Runtime) ListDevices(ctx context.Context, all bool) (*DevicesResponse, error) {
	var (
		list []devices.Device
		err  error
	)
	if all {
		list, err = r.Adb.ListAllDevices(ctx)
	} else {
		list, err = r.Adb.ListDevices(ctx)
	}
	if err != nil {
		return nil, err
	}

	remembered := map[string]bool{}
	for _, entry := range r.Store.Devices() {
		remembered[entry.ID] = true
	}

	authorized, total := devices.CountReady(list)
	resp := &DevicesResponse{
		Devices:    make([]DeviceStatus, 0, len(list)),
		Authorized: authorized,
		Total:      total,
		Active:     len(r.Scrcpy.ActiveDevices()),
	}

	seen := map[string]bool{}
	for _, d := range list {
		seen[d.ID] = true
		resp.Devices = append(resp.Devices, r.deviceStatus(d, remembered))
	}

	if all {
		for _, entry := range r.Store.Devices() {
			if seen[entry.ID] {
				continue
			}
			d := devices.Device{
				ID:             entry.ID,
				Status:         devices.StatusOffline,
				ConnectionType: devices.ConnectionTypeOf(entry.ID),
				Model:          valueOrUnknown(entry.Model),
				Name:           valueOrUnknown(entry.Name),
			}
			resp.Devices = append(resp.Devices, r.deviceStatus(d, remembered))
		}
	}

	return resp, nil
}

func valueOrUnknown(s string) string {
	if s == "" {
		return devices.UnknownValue
	}
	return s
}

// DevicesCommand lists devices reported by adb
func DevicesCommand(ctx context.Context, req DevicesRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	resp, err := r.ListDevices(ctx, req.All)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("error getting devices: %w", err))
	}

	return NewSuccessResponse(resp)
}

type DeviceRequest struct {
	DeviceID string `json:"deviceId"`
}

// DeviceInfoCommand returns a device with its session and settings state.
func DeviceInfoCommand(ctx context.Context, req DeviceRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	device, err := FindDeviceOrAutoSelect(ctx, req.DeviceID)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("error finding device: %w", err))
	}

	remembered := map[string]bool{}
	for _, entry := range r.Store.Devices() {
		remembered[entry.ID] = true
	}

	return NewSuccessResponse(map[string]interface{}{
		"device":   r.deviceStatus(device, remembered),
		"settings": r.Store.DeviceSettings(device.ID),
		"camera":   r.Store.CameraSettings(device.ID),
	})
}

type ConnectRequest struct {
	// Address is ip or ip:port; the port defaults to 5555.
	Address string `json:"address"`
}

// Connect runs `adb connect` for ip[:port] and remembers the device.
// It returns the device id, which is the normalized ip:port.
func (r *Runtime) Connect(ctx context.Context, input string) (string, error) {
	ip, port, err := devices.ParseAddress(input)
	if err != nil {
		return "", err
	}

	address := net.JoinHostPort(ip, strconv.Itoa(port))
	utils.Verbose("Connecting to %s", address)
	if err := r.Adb.Connect(ctx, ip, port); err != nil {
		return "", errors.New(r.Tr("messages.connect_failed", i18n.Args{"address": address, "error": err}))
	}

	if _, err := r.Adb.ListDevices(ctx); err != nil {
		utils.Verbose("Failed to refresh devices after connect: %v", err)
	}
	if err := r.rememberDevice(address); err != nil {
		utils.Warn("Failed to remember device %s: %v", address, err)
	}
	return address, nil
}

// ConnectCommand connects to a device over the network
func ConnectCommand(ctx context.Context, req ConnectRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	address, err := r.Connect(ctx, req.Address)
	if err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(map[string]interface{}{
		"message":  r.Tr("messages.connected", i18n.Args{"address": address}),
		"deviceId": address,
	})
}

// rememberDevice stores model and name of a device, keeping its settings.
func (r *Runtime) rememberDevice(deviceID string) error {
	entry := config.DeviceEntry{ID: deviceID}
	for _, existing := range r.Store.Devices() {
		if existing.ID == deviceID {
			entry = existing
			break
		}
	}
	if d, ok := r.Adb.DeviceInfo(deviceID); ok {
		entry.Model = d.Model
		entry.Name = d.Name
	}
	return r.Store.AddDevice(entry)
}

// DisconnectCommand runs `adb disconnect` for a wireless device.
func DisconnectCommand(ctx context.Context, req DeviceRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.DeviceID == "" {
		return NewErrorResponse(fmt.Errorf("device ID is required"))
	}

	if r.Scrcpy.Stop(req.DeviceID) {
		utils.Verbose("Stopped scrcpy for %s before disconnecting", req.DeviceID)
	}

	if err := r.Adb.Disconnect(ctx, req.DeviceID); err != nil {
		return NewErrorResponse(errors.New(r.Tr("messages.disconnect_failed", i18n.Args{"device": req.DeviceID, "error": err})))
	}

	return NewSuccessResponse(map[string]interface{}{
		"message": r.Tr("messages.disconnected", i18n.Args{"device": req.DeviceID}),
	})
}

// ForgetCommand stops the device's session and removes it with its settings
// from the settings file. The adb connection is left alone.
func ForgetCommand(ctx context.Context, req DeviceRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.DeviceID == "" {
		return NewErrorResponse(fmt.Errorf("device ID is required"))
	}

	r.Scrcpy.Stop(req.DeviceID)
	r.Adb.ForgetProperties(req.DeviceID)

	removed, err := r.Store.RemoveDevice(req.DeviceID)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("failed to save settings: %w", err))
	}

	return NewSuccessResponse(map[string]interface{}{
		"message": r.Tr("messages.forgotten", i18n.Args{"device": req.DeviceID}),
		"removed": removed,
	})
}
