package devices

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mirrordroid/mirrordroid/utils"
)

const (
	listTimeout       = 10 * time.Second
	propTimeout       = 5 * time.Second
	connectTimeout    = 10 * time.Second
	disconnectTimeout = 5 * time.Second
	pairTimeout       = 30 * time.Second

	propCacheSize = 128

	UnknownValue = "Unknown"
)

// Runner executes adb with the given arguments and returns its stdout.
// A non-zero exit is reported as *ExecError.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// ExecError carries the stderr of a failed adb invocation.
type ExecError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("adb %s: %v: %s", strings.Join(e.Args, " "), e.Err, e.Stderr)
	}
	return fmt.Sprintf("adb %s: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Adb is a thin client around the adb executable.
type Adb struct {
	path string
	run  Runner

	props *lru.Cache[string, string]

	mu      sync.RWMutex
	devices []Device
}

// NewAdb returns a client running the adb binary at path.
func NewAdb(path string) *Adb {
	a := &Adb{path: path}
	a.run = a.execRunner
	a.props, _ = lru.New[string, string](propCacheSize)
	return a
}

// NewAdbWithRunner returns a client that executes commands through runner.
func NewAdbWithRunner(path string, runner Runner) *Adb {
	a := NewAdb(path)
	a.run = runner
	return a
}

func (a *Adb) Path() string {
	return a.path
}

func (a *Adb) execRunner(ctx context.Context, args ...string) ([]byte, error) {
	utils.Verbose("Running: %s %s", a.path, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, a.path, args...)
	utils.HideConsole(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return output, &ExecError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	return output, nil
}

// Run executes an arbitrary adb command with a timeout.
func (a *Adb) Run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.run(ctx, args...)
}

// ListDevices runs `adb devices -l` and enriches every ready device
// with its model and product name.
func (a *Adb) ListDevices(ctx context.Context) ([]Device, error) {
	output, err := a.Run(ctx, listTimeout, "devices", "-l")
	if err != nil {
		return nil, fmt.Errorf("failed to run 'adb devices': %w", err)
	}

	devices := ParseDevicesOutput(string(output))
	for i := range devices {
		d := &devices[i]
		if d.Status == StatusDevice {
			d.Model = a.property(ctx, d.ID, "ro.product.model", d.Model)
			d.Name = a.property(ctx, d.ID, "ro.product.device", d.Name)
		}
		if d.Model == "" {
			d.Model = UnknownValue
		}
		if d.Name == "" {
			d.Name = UnknownValue
		}
	}

	a.mu.Lock()
	a.devices = devices
	a.mu.Unlock()

	return devices, nil
}

// ListAllDevices returns online devices followed by the AVDs that are not
// running. Running emulators are named after their AVD.
func (a *Adb) ListAllDevices(ctx context.Context) ([]Device, error) {
	devices, err := a.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	dir, err := AVDHome()
	if err != nil {
		utils.Verbose("Failed to locate AVDs: %v", err)
		return devices, nil
	}
	avds, err := LoadAVDs(dir)
	if err != nil {
		utils.Verbose("Failed to list AVDs: %v", err)
		return devices, nil
	}

	a.matchAVDs(ctx, devices, avds)
	return append(devices, stoppedAVDs(avds)...), nil
}

func (a *Adb) property(ctx context.Context, deviceID, name, fallback string) string {
	key := deviceID + "|" + name
	if value, ok := a.props.Get(key); ok {
		return value
	}

	output, err := a.Run(ctx, propTimeout, "-s", deviceID, "shell", "getprop", name)
	if err != nil {
		utils.Verbose("getprop %s on %s failed: %v", name, deviceID, err)
		return fallback
	}

	value := strings.TrimSpace(string(output))
	if value == "" {
		return fallback
	}

	a.props.Add(key, value)
	return value
}

// ForgetProperties drops cached properties for a device.
func (a *Adb) ForgetProperties(deviceID string) {
	for _, key := range a.props.Keys() {
		if strings.HasPrefix(key, deviceID+"|") {
			a.props.Remove(key)
		}
	}
}

// Devices returns the result of the last ListDevices call.
func (a *Adb) Devices() []Device {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Device, len(a.devices))
	copy(out, a.devices)
	return out
}

// IsConnected reports whether the device was ready in the last listing.
func (a *Adb) IsConnected(deviceID string) bool {
	d, ok := a.DeviceInfo(deviceID)
	return ok && d.Status == StatusDevice
}

func (a *Adb) DeviceInfo(deviceID string) (Device, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, d := range a.devices {
		if d.ID == deviceID {
			return d, true
		}
	}
	return Device{}, false
}

// Connect runs `adb connect ip:port`.
func (a *Adb) Connect(ctx context.Context, ip string, port int) error {
	target := fmt.Sprintf("%s:%d", ip, port)
	output, err := a.Run(ctx, connectTimeout, "connect", target)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("connection timeout")
		}
		return commandFailure(output, err)
	}

	if !isConnectSuccess(string(output)) {
		return errors.New(strings.TrimSpace(string(output)))
	}

	return nil
}

func isConnectSuccess(output string) bool {
	lower := strings.ToLower(output)
	if strings.Contains(lower, "cannot") || strings.Contains(lower, "failed") {
		return false
	}
	return strings.Contains(lower, "connected")
}

// Disconnect runs `adb disconnect <id>`.
func (a *Adb) Disconnect(ctx context.Context, deviceID string) error {
	output, err := a.Run(ctx, disconnectTimeout, "disconnect", deviceID)
	if err != nil {
		return commandFailure(output, err)
	}
	a.ForgetProperties(deviceID)
	return nil
}

// Pair runs `adb pair host:port code`.
func (a *Adb) Pair(ctx context.Context, hostPort, code string) error {
	output, err := a.Run(ctx, pairTimeout, "pair", hostPort, code)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("pairing timeout")
		}
		return commandFailure(output, err)
	}

	if !strings.Contains(string(output), "Successfully paired") {
		return errors.New(strings.TrimSpace(string(output)))
	}

	return nil
}

// Version returns the first line of `adb version`.
func (a *Adb) Version(ctx context.Context) (string, error) {
	output, err := a.Run(ctx, propTimeout, "version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(line), nil
}

func commandFailure(output []byte, err error) error {
	var execErr *ExecError
	if errors.As(err, &execErr) && execErr.Stderr != "" {
		return errors.New(execErr.Stderr)
	}
	if msg := strings.TrimSpace(string(output)); msg != "" {
		return errors.New(msg)
	}
	return err
}
