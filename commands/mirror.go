package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/mirrordroid/mirrordroid/i18n"
	"github.com/mirrordroid/mirrordroid/scrcpy"
	"github.com/mirrordroid/mirrordroid/utils"
)

type MirrorStartRequest struct {
	DeviceID string `json:"deviceId"`
}

type SessionResponse struct {
	Message string         `json:"message"`
	Session scrcpy.Session `json:"session"`
}

// startSession launches scrcpy and maps manager errors to user messages.
func (r *Runtime) startSession(deviceID string, kind scrcpy.Kind, args []string) (*SessionResponse, error) {
	session, err := r.Scrcpy.Start(deviceID, kind, args)
	if errors.Is(err, scrcpy.ErrAlreadyRunning) {
		return nil, errors.New(r.Tr("messages.already_running", i18n.Args{"device": deviceID}))
	}
	if err != nil {
		return nil, errors.New(r.Tr("messages.scrcpy_error", i18n.Args{"device": deviceID, "error": err}))
	}

	key := "messages.scrcpy_started"
	if kind == scrcpy.KindCamera {
		key = "messages.camera_started"
	}
	return &SessionResponse{
		Message: r.Tr(key, i18n.Args{"device": deviceID}),
		Session: session,
	}, nil
}

// StartMirror starts screen mirroring for a ready device with its stored settings.
func (r *Runtime) StartMirror(ctx context.Context, deviceID string) (*SessionResponse, error) {
	device, err := findReadyDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	settings := r.Store.DeviceSettings(device.ID)
	args := scrcpy.BuildMirrorArgs(device.ID, settings, r.Debug)
	utils.Verbose("Starting mirror for %s: %v", device.ID, args)

	return r.startSession(device.ID, scrcpy.KindMirror, args)
}

// MirrorStartCommand starts scrcpy for the device
func MirrorStartCommand(ctx context.Context, req MirrorStartRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	resp, err := r.StartMirror(ctx, req.DeviceID)
	if err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(resp)
}

// MirrorStopCommand stops the device's scrcpy session, mirror or camera.
func MirrorStopCommand(req DeviceRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.DeviceID == "" {
		return NewErrorResponse(fmt.Errorf("device ID is required"))
	}

	if !r.Scrcpy.Stop(req.DeviceID) {
		return NewErrorResponse(fmt.Errorf("%s: %w", r.Tr("messages.not_running", i18n.Args{"device": req.DeviceID}), scrcpy.ErrNotRunning))
	}

	return NewSuccessResponse(map[string]interface{}{
		"message": r.Tr("messages.scrcpy_stopped", i18n.Args{"device": req.DeviceID}),
	})
}

func MirrorStopAllCommand() *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	stopped := r.Scrcpy.StopAll()
	return NewSuccessResponse(map[string]interface{}{
		"message": r.Tr("messages.all_stopped", i18n.Args{"count": len(stopped)}),
		"stopped": stopped,
	})
}

// MirrorStatusCommand lists running sessions, or the device's one when DeviceID is set.
func MirrorStatusCommand(req DeviceRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if req.DeviceID != "" {
		session, ok := r.Scrcpy.Session(req.DeviceID)
		if !ok {
			return NewSuccessResponse(map[string]interface{}{
				"running":  false,
				"deviceId": req.DeviceID,
			})
		}
		return NewSuccessResponse(map[string]interface{}{
			"running":  true,
			"deviceId": req.DeviceID,
			"session":  session,
		})
	}

	return NewSuccessResponse(map[string]interface{}{
		"sessions": r.Scrcpy.Sessions(),
	})
}
