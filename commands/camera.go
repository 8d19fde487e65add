package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/mirrordroid/mirrordroid/config"
	"github.com/mirrordroid/mirrordroid/i18n"
	"github.com/mirrordroid/mirrordroid/scrcpy"
	"github.com/mirrordroid/mirrordroid/utils"
)

// CameraListCommand lists the device cameras reported by scrcpy
func CameraListCommand(ctx context.Context, req DeviceRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	device, err := findReadyDevice(ctx, req.DeviceID)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("error finding device: %w", err))
	}

	cameras, err := r.Prober.Cameras(ctx, device.ID)
	if err != nil {
		return NewErrorResponse(err)
	}

	resp := map[string]interface{}{
		"deviceId": device.ID,
		"cameras":  cameras,
	}
	if len(cameras) == 0 {
		resp["message"] = r.Tr("camera.no_cameras", i18n.Args{"device": device.ID})
	}
	return NewSuccessResponse(resp)
}

type CameraQueryRequest struct {
	DeviceID string `json:"deviceId"`
	CameraID string `json:"cameraId"`
}

// CameraSizesCommand lists the output sizes of one camera, largest first.
func CameraSizesCommand(ctx context.Context, req CameraQueryRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	device, err := findReadyDevice(ctx, req.DeviceID)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("error finding device: %w", err))
	}

	sizes, err := r.Prober.CameraSizes(ctx, device.ID, req.CameraID)
	if err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(map[string]interface{}{
		"deviceId": device.ID,
		"cameraId": req.CameraID,
		"sizes":    sizes,
	})
}

// CameraFPSCommand lists the frame rates of one camera.
func CameraFPSCommand(ctx context.Context, req CameraQueryRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	device, err := findReadyDevice(ctx, req.DeviceID)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("error finding device: %w", err))
	}

	return NewSuccessResponse(map[string]interface{}{
		"deviceId": device.ID,
		"cameraId": req.CameraID,
		"fps":      r.Prober.CameraFPS(ctx, device.ID, req.CameraID),
	})
}

type CameraStartRequest struct {
	DeviceID string `json:"deviceId"`
	// Profile overrides the stored camera settings when set.
	Profile *config.CameraProfile `json:"profile,omitempty"`
	// Save stores Profile as the device's camera settings before starting.
	Save bool `json:"save"`
}

// StartCamera starts scrcpy with the device camera as video source.
func (r *Runtime) StartCamera(ctx context.Context, req CameraStartRequest) (*SessionResponse, error) {
	device, err := findReadyDevice(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}

	profile := r.Store.CameraSettings(device.ID)
	if req.Profile != nil {
		profile = *req.Profile
	}

	if err := scrcpy.ValidateCamera(profile); err != nil {
		if errors.Is(err, scrcpy.ErrHighSpeedFPS) {
			return nil, fmt.Errorf("%s: %w", r.Tr("camera.high_speed_fps"), err)
		}
		return nil, err
	}

	if req.Profile != nil && req.Save {
		if err := r.Store.SetCameraSettings(device.ID, profile); err != nil {
			return nil, fmt.Errorf("failed to save camera settings: %w", err)
		}
	}

	args := scrcpy.BuildCameraArgs(device.ID, profile, r.GOOS, r.Debug)
	utils.Verbose("Starting camera for %s: %v", device.ID, args)

	return r.startSession(device.ID, scrcpy.KindCamera, args)
}

// CameraStartCommand starts a camera session for the device
func CameraStartCommand(ctx context.Context, req CameraStartRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	resp, err := r.StartCamera(ctx, req)
	if err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(resp)
}
