package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mirrordroid/mirrordroid/commands"
)

const (
	methodShutdown          = "server.shutdown"
	methodEventsSubscribe   = "events_subscribe"
	methodEventsUnsubscribe = "events_unsubscribe"
)

// HandlerFunc is the signature for JSON-RPC method handlers
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// GetMethodRegistry returns a map of method names to handler functions
// This is used by both the HTTP server and embedded clients
func GetMethodRegistry() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"devices":               handleDevicesList,
		"device_info":           handleDeviceInfo,
		"device_connect":        handleDeviceConnect,
		"device_disconnect":     handleDeviceDisconnect,
		"device_remove":         handleDeviceRemove,
		"mirror_start":          handleMirrorStart,
		"mirror_stop":           handleMirrorStop,
		"mirror_stop_all":       handleMirrorStopAll,
		"mirror_status":         handleMirrorStatus,
		"camera_list":           handleCameraList,
		"camera_sizes":          handleCameraSizes,
		"camera_fps":            handleCameraFPS,
		"camera_start":          handleCameraStart,
		"camera_v4l2_check":     handleCameraV4L2Check,
		"camera_v4l2_setup":     handleCameraV4L2Setup,
		"camera_v4l2_test":      handleCameraV4L2Test,
		"settings_get":          handleSettingsGet,
		"settings_set":          handleSettingsSet,
		"settings_reset":        handleSettingsReset,
		"settings_defaults_get": handleSettingsDefaultsGet,
		"settings_defaults_set": handleSettingsDefaultsSet,
		"camera_settings_get":   handleCameraSettingsGet,
		"camera_settings_set":   handleCameraSettingsSet,
		"app_settings_get":      handleAppSettingsGet,
		"app_settings_set":      handleAppSettingsSet,
		"language_set":          handleLanguageSet,
		"pair_code":             handlePairCode,
		"pair_qr_start":         handlePairQRStart,
		"pair_qr_status":        handlePairQRStatus,
		"pair_qr_cancel":        handlePairQRCancel,
		"pair_discover":         handlePairDiscover,
	}
}

// Execute dispatches a method call using the registry
// This is the main entry point for embedded clients
func Execute(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	registry := GetMethodRegistry()

	handler, exists := registry[method]
	if !exists {
		return nil, fmt.Errorf("method not found: %s", method)
	}

	return handler(ctx, params)
}

// decodeParams unmarshals params into T. Empty params leave T zero-valued.
func decodeParams[T any](params json.RawMessage, expected string) (T, error) {
	var v T
	if len(params) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, fmt.Errorf("invalid parameters: %v. Expected fields: %s", err, expected)
	}
	return v, nil
}

// requireParams is decodeParams for methods that cannot run without params.
func requireParams[T any](params json.RawMessage, expected string) (T, error) {
	if len(params) == 0 {
		var v T
		return v, fmt.Errorf("'params' is required with fields: %s", expected)
	}
	return decodeParams[T](params, expected)
}

func unwrap(response *commands.CommandResponse) (interface{}, error) {
	if response.Status == "error" {
		return nil, fmt.Errorf("%s", response.Error)
	}
	return response.Data, nil
}

func handleDevicesList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := decodeParams[commands.DevicesRequest](params, "all")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.DevicesCommand(ctx, req))
}

func handleDeviceInfo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := decodeParams[commands.DeviceRequest](params, "deviceId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.DeviceInfoCommand(ctx, req))
}

func handleDeviceConnect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.ConnectRequest](params, "address")
	if err != nil {
		return nil, err
	}
	if req.Address == "" {
		return nil, fmt.Errorf("'address' is required")
	}
	return unwrap(commands.ConnectCommand(ctx, req))
}

func handleDeviceDisconnect(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.DeviceRequest](params, "deviceId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.DisconnectCommand(ctx, req))
}

func handleDeviceRemove(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.DeviceRequest](params, "deviceId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.ForgetCommand(ctx, req))
}

func handleMirrorStart(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := decodeParams[commands.MirrorStartRequest](params, "deviceId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.MirrorStartCommand(ctx, req))
}

func handleMirrorStop(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.DeviceRequest](params, "deviceId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.MirrorStopCommand(req))
}

func handleMirrorStopAll(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.MirrorStopAllCommand())
}

func handleMirrorStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := decodeParams[commands.DeviceRequest](params, "deviceId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.MirrorStatusCommand(req))
}

func handleCameraList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := decodeParams[commands.DeviceRequest](params, "deviceId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.CameraListCommand(ctx, req))
}

func handleCameraSizes(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.CameraQueryRequest](params, "deviceId, cameraId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.CameraSizesCommand(ctx, req))
}

func handleCameraFPS(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.CameraQueryRequest](params, "deviceId, cameraId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.CameraFPSCommand(ctx, req))
}

func handleCameraStart(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := decodeParams[commands.CameraStartRequest](params, "deviceId, profile, save")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.CameraStartCommand(ctx, req))
}

func handleCameraV4L2Check(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.V4L2CheckCommand(ctx))
}

func handleCameraV4L2Setup(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.V4L2SetupCommand(ctx))
}

func handleCameraV4L2Test(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := decodeParams[commands.V4L2TestRequest](params, "deviceId, device")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.V4L2TestCommand(ctx, req))
}

func handleSettingsGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.SettingsRequest](params, "deviceId")
	if err != nil {
		return nil, err
	}
	if req.DeviceID == "" {
		return nil, fmt.Errorf("'deviceId' is required, use settings_defaults_get for the defaults")
	}
	return unwrap(commands.SettingsGetCommand(req))
}

func handleSettingsSet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.SettingsSetRequest](params, "deviceId, settings, values")
	if err != nil {
		return nil, err
	}
	if req.DeviceID == "" {
		return nil, fmt.Errorf("'deviceId' is required, use settings_defaults_set for the defaults")
	}
	return unwrap(commands.SettingsSetCommand(req))
}

func handleSettingsReset(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := decodeParams[commands.DeviceRequest](params, "deviceId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.SettingsResetCommand(req))
}

func handleSettingsDefaultsGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.SettingsGetCommand(commands.SettingsRequest{}))
}

func handleSettingsDefaultsSet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.SettingsSetRequest](params, "settings, values")
	if err != nil {
		return nil, err
	}
	req.DeviceID = ""
	return unwrap(commands.SettingsSetCommand(req))
}

func handleCameraSettingsGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.DeviceRequest](params, "deviceId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.CameraSettingsGetCommand(req))
}

func handleCameraSettingsSet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.CameraSettingsSetRequest](params, "deviceId, camera")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.CameraSettingsSetCommand(req))
}

func handleAppSettingsGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.AppSettingsGetCommand())
}

func handleAppSettingsSet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.AppSettingRequest](params, "key, value")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.AppSettingsSetCommand(req))
}

func handleLanguageSet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := decodeParams[commands.LanguageRequest](params, "language")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.LanguageCommand(req))
}

func handlePairCode(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.PairCodeRequest](params, "address, code, connect")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.PairCodeCommand(ctx, req))
}

func handlePairQRStart(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return unwrap(commands.PairQRStartCommand())
}

func handlePairQRStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.PairQRRequest](params, "sessionId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.PairQRStatusCommand(req))
}

func handlePairQRCancel(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := requireParams[commands.PairQRRequest](params, "sessionId")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.PairQRCancelCommand(req))
}

func handlePairDiscover(ctx context.Context, params json.RawMessage) (interface{}, error) {
	req, err := decodeParams[commands.PairDiscoverRequest](params, "service, timeout")
	if err != nil {
		return nil, err
	}
	return unwrap(commands.PairDiscoverCommand(ctx, req))
}
