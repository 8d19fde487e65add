package v4l2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/mirrordroid/mirrordroid/utils"
)

const (
	ModuleName = "v4l2loopback"

	// DefaultDevice is the loopback device scrcpy writes to when none is configured.
	DefaultDevice = "/dev/video0"

	checkTimeout = 10 * time.Second
	setupTimeout = 30 * time.Second
	testTimeout  = 10 * time.Second

	devicePattern = "/dev/video*"
)

// Requirement names reported in Status.Missing.
const (
	MissingModule      = "module"
	MissingModuleLoad  = "module_loaded"
	MissingLoopbackCtl = "v4l2loopback-ctl"
	MissingV4L2Ctl     = "v4l2-ctl"
)

var (
	ErrUnsupported    = errors.New("v4l2 loopback is only available on linux")
	ErrDeviceNotFound = errors.New("v4l2 device not found")
)

// Runner executes name with args and returns its stdout.
// A non-zero exit is reported as *ExecError.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

type ExecError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Host inspects and prepares the v4l2loopback setup of the local machine.
type Host struct {
	goos     string
	run      Runner
	lookPath func(string) (string, error)
	glob     func(string) ([]string, error)
	exists   func(string) bool
}

// NewHost returns a host running real commands on the current OS.
func NewHost() *Host {
	return &Host{
		goos:     runtime.GOOS,
		run:      execRunner,
		lookPath: exec.LookPath,
		glob:     filepath.Glob,
		exists:   deviceExists,
	}
}

// NewHostWithRunner returns a host for goos that executes through runner and
// resolves tools and devices from the given sets.
func NewHostWithRunner(goos string, runner Runner, tools []string, devices []string) *Host {
	h := NewHost()
	h.goos = goos
	h.run = runner
	h.lookPath = func(name string) (string, error) {
		for _, t := range tools {
			if t == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", exec.ErrNotFound
	}
	h.glob = func(pattern string) ([]string, error) {
		var matches []string
		for _, d := range devices {
			if ok, _ := filepath.Match(pattern, d); ok {
				matches = append(matches, d)
			}
		}
		return matches, nil
	}
	h.exists = func(path string) bool {
		for _, d := range devices {
			if d == path {
				return true
			}
		}
		return false
	}
	return h
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	command := strings.TrimSpace(name + " " + strings.Join(args, " "))
	utils.Verbose("Running: %s", command)
	cmd := exec.CommandContext(ctx, name, args...)
	utils.HideConsole(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return output, &ExecError{Command: command, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return output, nil
}

func deviceExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Status is the result of a requirements check.
type Status struct {
	ModuleInstalled bool     `json:"moduleInstalled"`
	ModuleLoaded    bool     `json:"moduleLoaded"`
	LoopbackCtl     bool     `json:"loopbackCtl"`
	V4L2Ctl         bool     `json:"v4l2Ctl"`
	Devices         []string `json:"devices"`
	Missing         []string `json:"missing,omitempty"`
}

// Ready reports whether scrcpy can stream into a loopback device.
func (s Status) Ready() bool {
	return s.ModuleInstalled && s.ModuleLoaded && len(s.Devices) > 0
}

func (h *Host) supported() error {
	if h.goos != "linux" {
		return ErrUnsupported
	}
	return nil
}

// Check reports which parts of the v4l2loopback setup are present.
func (h *Host) Check(ctx context.Context) (*Status, error) {
	if err := h.supported(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	status := &Status{}
	if _, err := h.run(ctx, "modinfo", ModuleName); err == nil {
		status.ModuleInstalled = true
	} else {
		utils.Verbose("modinfo %s: %v", ModuleName, err)
		status.Missing = append(status.Missing, MissingModule)
	}

	status.ModuleLoaded = h.moduleLoaded(ctx)
	if status.ModuleInstalled && !status.ModuleLoaded {
		status.Missing = append(status.Missing, MissingModuleLoad)
	}

	if _, err := h.lookPath("v4l2loopback-ctl"); err == nil {
		status.LoopbackCtl = true
	} else {
		status.Missing = append(status.Missing, MissingLoopbackCtl)
	}
	if _, err := h.lookPath("v4l2-ctl"); err == nil {
		status.V4L2Ctl = true
	} else {
		status.Missing = append(status.Missing, MissingV4L2Ctl)
	}

	status.Devices = h.devices()
	return status, nil
}

func (h *Host) moduleLoaded(ctx context.Context) bool {
	output, err := h.run(ctx, "lsmod")
	if err != nil {
		utils.Verbose("lsmod: %v", err)
		return false
	}
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == ModuleName {
			return true
		}
	}
	return false
}

func (h *Host) devices() []string {
	matches, err := h.glob(devicePattern)
	if err != nil {
		return []string{}
	}
	sort.Strings(matches)
	if matches == nil {
		return []string{}
	}
	return matches
}

// Setup loads v4l2loopback with exclusive_caps so browsers and video apps
// accept the device, and returns the video devices present afterwards.
// sudo runs non-interactively; it fails when a password would be needed.
func (h *Host) Setup(ctx context.Context) ([]string, error) {
	if err := h.supported(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()

	if _, err := h.run(ctx, "sudo", "-n", "modprobe", ModuleName, "exclusive_caps=1"); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", ModuleName, err)
	}
	if !h.moduleLoaded(ctx) {
		return nil, fmt.Errorf("%s is not listed by lsmod after modprobe", ModuleName)
	}

	devices := h.devices()
	utils.Info("Loaded %s, devices: %s", ModuleName, strings.Join(devices, ", "))
	return devices, nil
}

// TestResult holds the formats a loopback device reports.
type TestResult struct {
	Device  string `json:"device"`
	Formats string `json:"formats"`
}

// Test checks that device exists and lists its formats with v4l2-ctl.
func (h *Host) Test(ctx context.Context, device string) (*TestResult, error) {
	if err := h.supported(); err != nil {
		return nil, err
	}
	if device == "" {
		device = DefaultDevice
	}
	if !h.exists(device) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
	}

	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	output, err := h.run(ctx, "v4l2-ctl", "--device="+device, "--list-formats-ext")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", device, err)
	}
	return &TestResult{Device: device, Formats: strings.TrimSpace(string(output))}, nil
}
