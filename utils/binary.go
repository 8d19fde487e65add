package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ExecutableName appends .exe on windows
func ExecutableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// BundledPlatformDir is the sub-directory of app/ that holds binaries
// shipped with MirrorDroid for the current OS.
func BundledPlatformDir() string {
	if runtime.GOOS == "windows" {
		return "win"
	}
	return "linux"
}

// BundleSearchRoots returns directories that may contain an app/ folder
// with bundled adb and scrcpy: next to the executable, then the working dir.
func BundleSearchRoots() []string {
	var roots []string
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		roots = append(roots, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		roots = append(roots, wd)
	}
	return roots
}

// FindBinaryInDir looks for any of candidates in dir and its direct sub-directories.
func FindBinaryInDir(dir string, candidates []string) (string, error) {
	if dir == "" {
		return "", errors.New("search dir is empty")
	}
	if len(candidates) == 0 {
		return "", errors.New("binary candidates are empty")
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if FileExists(path) {
			return path, nil
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("binary not found in %s (candidates: %v): %w", dir, candidates, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		subdir := filepath.Join(dir, entry.Name())
		for _, name := range candidates {
			path := filepath.Join(subdir, name)
			if FileExists(path) {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("binary not found in %s (candidates: %v)", dir, candidates)
}

// GetAndroidSdkPath returns the Android SDK root, or "" when none is found
func GetAndroidSdkPath() string {
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		sdkPath := os.Getenv(env)
		if sdkPath != "" {
			if _, err := os.Stat(sdkPath); err == nil {
				return sdkPath
			}
		}
	}

	homeDir, _ := os.UserHomeDir()
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates, filepath.Join(homeDir, "Library", "Android", "sdk"))
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			candidates = append(candidates, filepath.Join(localAppData, "Android", "Sdk"))
		}
		candidates = append(candidates, filepath.Join(homeDir, "AppData", "Local", "Android", "Sdk"))
	default:
		candidates = append(candidates, filepath.Join(homeDir, "Android", "Sdk"))
	}

	for _, path := range candidates {
		if homeDir == "" && !filepath.IsAbs(path) {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// BinaryLookup describes where to search for an external tool.
type BinaryLookup struct {
	Name     string // base name without extension, e.g. "adb"
	Explicit string // --adb / --scrcpy flag value
	EnvVar   string // e.g. MIRRORDROID_ADB
	// SdkSubdir, when set, is searched inside the Android SDK (platform-tools for adb)
	SdkSubdir string
}

// ResolveBinary finds a tool in order: explicit path, environment variable,
// bundled app/<os>/ directory, Android SDK, PATH.
func ResolveBinary(lookup BinaryLookup) (string, error) {
	if lookup.Explicit != "" {
		if !FileExists(lookup.Explicit) {
			return "", fmt.Errorf("%s not found at %s", lookup.Name, lookup.Explicit)
		}
		return lookup.Explicit, nil
	}

	if lookup.EnvVar != "" {
		if path := os.Getenv(lookup.EnvVar); path != "" {
			if !FileExists(path) {
				return "", fmt.Errorf("%s from %s not found at %s", lookup.Name, lookup.EnvVar, path)
			}
			return path, nil
		}
	}

	candidates := []string{ExecutableName(lookup.Name)}
	for _, root := range BundleSearchRoots() {
		dir := filepath.Join(root, "app", BundledPlatformDir())
		path, err := FindBinaryInDir(dir, candidates)
		if err != nil {
			continue
		}
		if err := EnsureExecutable(path); err != nil {
			Verbose("Failed to make %s executable: %v", path, err)
		}
		return path, nil
	}

	if lookup.SdkSubdir != "" {
		if sdk := GetAndroidSdkPath(); sdk != "" {
			path := filepath.Join(sdk, lookup.SdkSubdir, ExecutableName(lookup.Name))
			if FileExists(path) {
				return path, nil
			}
		}
	}

	path, err := exec.LookPath(lookup.Name)
	if err != nil {
		return "", fmt.Errorf("%s not found (bundled app/%s, Android SDK or PATH): %w", lookup.Name, BundledPlatformDir(), err)
	}

	return path, nil
}
