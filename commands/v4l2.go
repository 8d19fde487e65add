package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/mirrordroid/mirrordroid/i18n"
	"github.com/mirrordroid/mirrordroid/v4l2"
)

var missingMessages = map[string]string{
	v4l2.MissingModule:      "v4l2.module_not_found",
	v4l2.MissingModuleLoad:  "v4l2.module_not_loaded",
	v4l2.MissingLoopbackCtl: "v4l2.ctl_not_found",
	v4l2.MissingV4L2Ctl:     "v4l2.utils_not_found",
}

type V4L2CheckResponse struct {
	*v4l2.Status
	Ready    bool     `json:"ready"`
	Messages []string `json:"messages"`
}

// v4l2Error translates the errors of the v4l2 host.
func (r *Runtime) v4l2Error(err error, key string, args i18n.Args) error {
	if errors.Is(err, v4l2.ErrUnsupported) {
		return errors.New(r.Tr("v4l2.unsupported"))
	}
	args["error"] = err
	return errors.New(r.Tr(key, args))
}

// V4L2CheckCommand reports whether the v4l2loopback module and tools are installed.
func V4L2CheckCommand(ctx context.Context) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	status, err := r.V4L2.Check(ctx)
	if err != nil {
		return NewErrorResponse(r.v4l2Error(err, "v4l2.module_error", i18n.Args{}))
	}

	resp := &V4L2CheckResponse{Status: status, Ready: status.Ready(), Messages: []string{}}
	for _, missing := range status.Missing {
		resp.Messages = append(resp.Messages, r.Tr(missingMessages[missing]))
	}
	if status.ModuleLoaded && len(status.Devices) == 0 {
		resp.Messages = append(resp.Messages, r.Tr("v4l2.devices_not_found"))
	}
	if resp.Ready && len(status.Missing) == 0 {
		resp.Messages = append(resp.Messages, r.Tr("v4l2.requirements_met"))
	}
	return NewSuccessResponse(resp)
}

// V4L2SetupCommand loads the v4l2loopback module.
func V4L2SetupCommand(ctx context.Context) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	devices, err := r.V4L2.Setup(ctx)
	if err != nil {
		return NewErrorResponse(r.v4l2Error(err, "v4l2.module_error", i18n.Args{}))
	}

	return NewSuccessResponse(map[string]interface{}{
		"devices": devices,
		"message": r.Tr("v4l2.module_loaded", i18n.Args{"devices": strings.Join(devices, ", ")}),
	})
}

type V4L2TestRequest struct {
	DeviceID string `json:"deviceId,omitempty"`
	Device   string `json:"device,omitempty"`
}

// V4L2TestCommand lists the formats of a loopback device. Without an
// explicit device it tests the one in the camera settings of DeviceID.
func V4L2TestCommand(ctx context.Context, req V4L2TestRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	device := req.Device
	if device == "" && req.DeviceID != "" {
		device = r.Store.CameraSettings(req.DeviceID).V4L2.Device
	}
	if device == "" {
		device = v4l2.DefaultDevice
	}

	result, err := r.V4L2.Test(ctx, device)
	if err != nil {
		args := i18n.Args{"device": device}
		if errors.Is(err, v4l2.ErrDeviceNotFound) {
			return NewErrorResponse(errors.New(r.Tr("v4l2.device_not_found", args)))
		}
		return NewErrorResponse(r.v4l2Error(err, "v4l2.test_error", args))
	}

	return NewSuccessResponse(map[string]interface{}{
		"device":  result.Device,
		"formats": result.Formats,
		"message": r.Tr("v4l2.test_success", i18n.Args{"device": result.Device}),
	})
}
