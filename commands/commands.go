package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/mirrordroid/mirrordroid/config"
	"github.com/mirrordroid/mirrordroid/devices"
	"github.com/mirrordroid/mirrordroid/i18n"
	"github.com/mirrordroid/mirrordroid/pairing"
	"github.com/mirrordroid/mirrordroid/scrcpy"
	"github.com/mirrordroid/mirrordroid/utils"
	"github.com/mirrordroid/mirrordroid/v4l2"
)

// CommandResponse represents a standardized response format for all commands
type CommandResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *CommandResponse {
	return &CommandResponse{
		Status: "ok",
		Data:   data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err error) *CommandResponse {
	return &CommandResponse{
		Status: "error",
		Error:  err.Error(),
	}
}

// Runtime bundles the services every command works against.
type Runtime struct {
	Adb     *devices.Adb
	Scrcpy  *scrcpy.Manager
	Prober  *scrcpy.Prober
	Store   *config.Store
	Catalog *i18n.Catalog
	Browser pairing.Browser
	QR      *QRRegistry
	V4L2    *v4l2.Host
	GOOS    string
	Debug   bool
	Version string
}

// NewRuntime wires a runtime around resolved adb and scrcpy paths.
func NewRuntime(adbPath, scrcpyPath string, store *config.Store) *Runtime {
	r := &Runtime{
		Adb:     devices.NewAdb(adbPath),
		Scrcpy:  scrcpy.NewManager(scrcpyPath),
		Prober:  scrcpy.NewProber(scrcpyPath),
		Store:   store,
		Browser: pairing.ZeroconfBrowser{},
		V4L2:    v4l2.NewHost(),
		GOOS:    runtime.GOOS,
	}
	r.QR = NewQRRegistry(r)
	r.Catalog = newCatalog(store)
	return r
}

// newCatalog loads translations in the stored language and persists
// language changes to app_settings.
func newCatalog(store *config.Store) *i18n.Catalog {
	catalog, err := i18n.NewCatalog(store.AppSettings().Language)
	if err != nil {
		utils.Warn("Failed to load translations: %v", err)
		return i18n.Default()
	}
	catalog.OnLanguageChange(func(language string) error {
		return store.SetAppSetting("language", language)
	})
	i18n.SetDefault(catalog)
	return catalog
}

var rt *Runtime

// SetRuntime sets the runtime used by all commands. It is called once at
// startup by the CLI and the server.
func SetRuntime(r *Runtime) {
	rt = r
}

// GetRuntime returns the current runtime, nil before SetRuntime.
func GetRuntime() *Runtime {
	return rt
}

var errNoRuntime = errors.New("runtime is not initialized")

func current() (*Runtime, error) {
	if rt == nil {
		return nil, errNoRuntime
	}
	return rt, nil
}

// FindDevice finds a connected device by ID, refreshing the listing when
// the last one does not know it.
func FindDevice(ctx context.Context, deviceID string) (devices.Device, error) {
	if deviceID == "" {
		return devices.Device{}, fmt.Errorf("device ID is required")
	}

	r, err := current()
	if err != nil {
		return devices.Device{}, err
	}

	if d, ok := r.Adb.DeviceInfo(deviceID); ok {
		return d, nil
	}

	if _, err := r.Adb.ListDevices(ctx); err != nil {
		return devices.Device{}, fmt.Errorf("error getting devices: %w", err)
	}

	if d, ok := r.Adb.DeviceInfo(deviceID); ok {
		return d, nil
	}

	return devices.Device{}, fmt.Errorf("device not found: %s", deviceID)
}

// FindDeviceOrAutoSelect finds a device by ID, or auto-selects if deviceID is empty
func FindDeviceOrAutoSelect(ctx context.Context, deviceID string) (devices.Device, error) {
	if deviceID != "" {
		return FindDevice(ctx, deviceID)
	}

	r, err := current()
	if err != nil {
		return devices.Device{}, err
	}

	all, err := r.Adb.ListDevices(ctx)
	if err != nil {
		return devices.Device{}, fmt.Errorf("error getting devices: %w", err)
	}

	var online []devices.Device
	for _, d := range all {
		if d.Ready() {
			online = append(online, d)
		}
	}

	if len(online) == 0 {
		return devices.Device{}, fmt.Errorf("no online devices found")
	}

	if len(online) > 1 {
		return devices.Device{}, fmt.Errorf("multiple devices found (%d), please specify --device with one of: %s", len(online), getDeviceIDList(online))
	}

	return online[0], nil
}

// findReadyDevice resolves the device and requires the "device" state.
// scrcpy cannot attach to offline or unauthorized devices.
func findReadyDevice(ctx context.Context, deviceID string) (devices.Device, error) {
	d, err := FindDeviceOrAutoSelect(ctx, deviceID)
	if err != nil {
		return d, err
	}
	if !d.Ready() {
		return d, fmt.Errorf("device %s is %s", d.ID, d.Status)
	}
	return d, nil
}

// getDeviceIDList returns a comma-separated list of device IDs for error messages
func getDeviceIDList(list []devices.Device) string {
	var ids []string
	for _, d := range list {
		ids = append(ids, d.ID)
	}
	return fmt.Sprintf("[%s]", strings.Join(ids, ", "))
}

// Tr translates with the runtime catalog, or the process-wide one.
func (r *Runtime) Tr(key string, args ...i18n.Args) string {
	if r.Catalog != nil {
		return r.Catalog.Tr(key, args...)
	}
	return i18n.Tr(key, args...)
}
