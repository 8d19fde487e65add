package scrcpy

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mirrordroid/mirrordroid/utils"
)

const probeTimeout = 15 * time.Second

// DefaultCameraFPS is offered when the device does not report frame rates.
var DefaultCameraFPS = []int{15, 24, 30, 60}

// Camera is one entry of `scrcpy --list-cameras`.
type Camera struct {
	ID            string `json:"id"`
	Facing        string `json:"facing"`
	MaxResolution string `json:"max_resolution"`
	FPS           []int  `json:"fps,omitempty"`
	Description   string `json:"description"`
}

var (
	cameraLineRe = regexp.MustCompile(`--camera-id=(\S+)\s*(?:\(([^)]*)\))?`)
	fpsRe        = regexp.MustCompile(`fps=\[([^\]]*)\]`)
	sizeRe       = regexp.MustCompile(`^(\d+)x(\d+)$`)
)

// cameraIDOf returns the camera id on a "--camera-id=N ..." line.
func cameraIDOf(line string) (string, bool) {
	m := cameraLineRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseCameras parses `scrcpy --list-cameras` output, e.g.
//
//	--camera-id=0    (back, 4000x3000, fps=[10, 15, 30])
func ParseCameras(output string) []Camera {
	cameras := []Camera{}

	for _, line := range strings.Split(output, "\n") {
		m := cameraLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		camera := Camera{ID: m[1], Facing: "unknown", MaxResolution: "unknown"}
		if details := m[2]; details != "" {
			parts := strings.Split(details, ",")
			switch facing := strings.TrimSpace(parts[0]); facing {
			case "back", "front", "external":
				camera.Facing = facing
			}
			if len(parts) > 1 {
				camera.MaxResolution = strings.TrimSpace(parts[1])
			}
		}
		camera.FPS = parseFPSList(line)
		camera.Description = fmt.Sprintf("%s (%s)", camera.Facing, camera.MaxResolution)

		cameras = append(cameras, camera)
	}

	return cameras
}

func parseFPSList(line string) []int {
	m := fpsRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	var fps []int
	for _, part := range strings.Split(m[1], ",") {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err == nil {
			fps = append(fps, value)
		}
	}
	return fps
}

// cameraSection returns the lines that belong to cameraID in
// `scrcpy --list-camera-sizes` output, header line included.
func cameraSection(output, cameraID string) []string {
	var section []string
	inside := false

	for _, line := range strings.Split(output, "\n") {
		if id, ok := cameraIDOf(line); ok {
			inside = id == cameraID
			if inside {
				section = append(section, line)
			}
			continue
		}
		if inside {
			section = append(section, line)
		}
	}

	return section
}

// ParseCameraSizes lists the sizes of one camera, largest area first.
// High-speed sizes ("- 1920x1080 (fps=[120, 240])") are included.
func ParseCameraSizes(output, cameraID string) []string {
	type size struct {
		text string
		area int
	}

	var sizes []size
	seen := map[string]bool{}

	for _, line := range cameraSection(output, cameraID) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		text := strings.TrimSpace(line[2:])
		if idx := strings.Index(text, "("); idx >= 0 {
			text = strings.TrimSpace(text[:idx])
		}

		m := sizeRe.FindStringSubmatch(text)
		if m == nil || seen[text] {
			continue
		}
		seen[text] = true

		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		sizes = append(sizes, size{text: text, area: w * h})
	}

	sort.SliceStable(sizes, func(i, j int) bool {
		return sizes[i].area > sizes[j].area
	})

	out := make([]string, len(sizes))
	for i, s := range sizes {
		out[i] = s.text
	}
	return out
}

// ParseCameraFPS returns the frame rates reported on the camera's header
// line, or DefaultCameraFPS.
func ParseCameraFPS(output, cameraID string) []int {
	section := cameraSection(output, cameraID)
	if len(section) > 0 {
		if fps := parseFPSList(section[0]); len(fps) > 0 {
			return fps
		}
	}
	return append([]int(nil), DefaultCameraFPS...)
}

// Prober runs scrcpy's listing options against a device.
type Prober struct {
	path string
	run  func(ctx context.Context, args ...string) ([]byte, error)
}

func NewProber(path string) *Prober {
	p := &Prober{path: path}
	p.run = p.execRunner
	return p
}

// NewProberWithRunner is used by tests to replace the scrcpy binary.
func NewProberWithRunner(path string, run func(ctx context.Context, args ...string) ([]byte, error)) *Prober {
	return &Prober{path: path, run: run}
}

func (p *Prober) execRunner(ctx context.Context, args ...string) ([]byte, error) {
	utils.Verbose("Running: %s %s", p.path, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, p.path, args...)
	utils.HideConsole(cmd)
	// scrcpy prints the listing on stdout and its banner on stderr
	return cmd.Output()
}

func (p *Prober) probe(ctx context.Context, deviceID, option string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	output, err := p.run(ctx, "-s", deviceID, option)
	if err != nil {
		return "", fmt.Errorf("scrcpy %s failed for %s: %w", option, deviceID, err)
	}
	return string(output), nil
}

func (p *Prober) Cameras(ctx context.Context, deviceID string) ([]Camera, error) {
	output, err := p.probe(ctx, deviceID, "--list-cameras")
	if err != nil {
		return nil, err
	}
	return ParseCameras(output), nil
}

func (p *Prober) CameraSizes(ctx context.Context, deviceID, cameraID string) ([]string, error) {
	output, err := p.probe(ctx, deviceID, "--list-camera-sizes")
	if err != nil {
		return nil, err
	}
	return ParseCameraSizes(output, cameraID), nil
}

// CameraFPS never fails: probing errors yield DefaultCameraFPS.
func (p *Prober) CameraFPS(ctx context.Context, deviceID, cameraID string) []int {
	output, err := p.probe(ctx, deviceID, "--list-camera-sizes")
	if err != nil {
		utils.Verbose("Error getting camera FPS: %v", err)
		return append([]int(nil), DefaultCameraFPS...)
	}
	return ParseCameraFPS(output, cameraID)
}

// Version returns the first line of `scrcpy --version`.
func (p *Prober) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	output, err := p.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(line), nil
}
