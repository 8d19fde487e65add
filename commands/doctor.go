package commands

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mirrordroid/mirrordroid/utils"
)

const (
	EnvAdbPath    = "MIRRORDROID_ADB"
	EnvScrcpyPath = "MIRRORDROID_SCRCPY"

	doctorTimeout = 10 * time.Second
)

// AdbLookup describes where adb is searched for.
func AdbLookup(explicit string) utils.BinaryLookup {
	return utils.BinaryLookup{
		Name:      "adb",
		Explicit:  explicit,
		EnvVar:    EnvAdbPath,
		SdkSubdir: "platform-tools",
	}
}

// ScrcpyLookup describes where scrcpy is searched for.
func ScrcpyLookup(explicit string) utils.BinaryLookup {
	return utils.BinaryLookup{
		Name:     "scrcpy",
		Explicit: explicit,
		EnvVar:   EnvScrcpyPath,
	}
}

type BinaryInfo struct {
	Path       string `json:"path"`
	Version    string `json:"version,omitempty"`
	Executable bool   `json:"executable"`
	Error      string `json:"error,omitempty"`
}

type DoctorInfo struct {
	MirrorDroidVersion string     `json:"mirrordroid_version"`
	OS                 string     `json:"os"`
	OSVersion          string     `json:"os_version"`
	AndroidHome        string     `json:"android_home"`
	ConfigPath         string     `json:"config_path"`
	ADB                BinaryInfo `json:"adb"`
	Scrcpy             BinaryInfo `json:"scrcpy"`
	ScrcpyServerPath   string     `json:"scrcpy_server_path,omitempty"`
	EmulatorPath       string     `json:"emulator_path,omitempty"`
	Language           string     `json:"language,omitempty"`
}

type DoctorRequest struct {
	Version    string
	AdbPath    string
	ScrcpyPath string
	ConfigPath string
}

func getEmulatorPath() string {
	sdkPath := utils.GetAndroidSdkPath()
	if sdkPath != "" {
		emulatorPath := filepath.Join(sdkPath, "emulator", utils.ExecutableName("emulator"))
		if utils.FileExists(emulatorPath) {
			return emulatorPath
		}
	}

	// check if emulator is in PATH
	emulatorPath, err := exec.LookPath("emulator")
	if err == nil {
		return emulatorPath
	}

	return ""
}

// getScrcpyServerPath looks for the server jar that scrcpy pushes to the device.
func getScrcpyServerPath(scrcpyPath string) string {
	if env := os.Getenv("SCRCPY_SERVER_PATH"); env != "" && utils.FileExists(env) {
		return env
	}
	if scrcpyPath == "" {
		return ""
	}
	path, err := utils.FindBinaryInDir(filepath.Dir(scrcpyPath), []string{"scrcpy-server", "scrcpy-server.jar"})
	if err != nil {
		return ""
	}
	return path
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return strings.EqualFold(filepath.Ext(path), ".exe")
	}
	return info.Mode()&0o111 != 0
}

func getOSVersion() string {
	switch runtime.GOOS {
	case "darwin":
		cmd := exec.Command("sw_vers", "-productVersion")
		output, err := cmd.CombinedOutput()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(output))
	case "windows":
		cmd := exec.Command("cmd", "/c", "ver")
		utils.HideConsole(cmd)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(output))
	case "linux":
		// try reading /etc/os-release
		data, err := os.ReadFile("/etc/os-release")
		if err != nil {
			return ""
		}
		lines := strings.Split(string(data), "\n")
		for _, line := range lines {
			if strings.HasPrefix(line, "PRETTY_NAME=") {
				return strings.Trim(strings.TrimPrefix(line, "PRETTY_NAME="), "\"")
			}
		}
		return ""
	default:
		return ""
	}
}

func binaryInfo(path string, resolveErr error) BinaryInfo {
	info := BinaryInfo{Path: path}
	if resolveErr != nil {
		info.Error = resolveErr.Error()
		return info
	}
	info.Executable = isExecutable(path)
	return info
}

// DoctorCommand performs system diagnostics and returns information about the environment
func DoctorCommand(ctx context.Context, req DoctorRequest) *CommandResponse {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	info := DoctorInfo{
		MirrorDroidVersion: req.Version,
		OS:                 runtime.GOOS,
		OSVersion:          getOSVersion(),
		AndroidHome:        utils.GetAndroidSdkPath(),
		ConfigPath:         req.ConfigPath,
		EmulatorPath:       getEmulatorPath(),
	}

	adbPath, err := utils.ResolveBinary(AdbLookup(req.AdbPath))
	info.ADB = binaryInfo(adbPath, err)

	scrcpyPath, err := utils.ResolveBinary(ScrcpyLookup(req.ScrcpyPath))
	info.Scrcpy = binaryInfo(scrcpyPath, err)
	info.ScrcpyServerPath = getScrcpyServerPath(scrcpyPath)

	r := GetRuntime()
	if info.ADB.Error == "" && r != nil {
		if version, err := r.Adb.Version(ctx); err == nil {
			info.ADB.Version = version
		} else {
			info.ADB.Error = err.Error()
		}
	}
	if info.Scrcpy.Error == "" && r != nil {
		if version, err := r.Prober.Version(ctx); err == nil {
			info.Scrcpy.Version = version
		} else {
			info.Scrcpy.Error = err.Error()
		}
	}
	if r != nil && r.Catalog != nil {
		info.Language = r.Catalog.Language()
	}

	return NewSuccessResponse(info)
}
