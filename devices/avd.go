package devices

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mirrordroid/mirrordroid/utils"
	"gopkg.in/ini.v1"
)

// AVD is an Android Virtual Device defined in the AVD home.
type AVD struct {
	// Name is the identifier `emulator -avd` and `adb emu avd name` use.
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	APILevel    string `json:"api_level,omitempty"`
	// Serial is the emulator-NNNN serial while the AVD is running.
	Serial string `json:"serial,omitempty"`
}

// Version is the label shown in the version column.
func (v AVD) Version() string {
	if v.APILevel == "" {
		return "AVD"
	}
	return "API " + v.APILevel
}

// AVDHome returns the directory the emulator keeps AVD definitions in:
// $ANDROID_AVD_HOME, $ANDROID_USER_HOME/avd or ~/.android/avd.
func AVDHome() (string, error) {
	if dir := os.Getenv("ANDROID_AVD_HOME"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("ANDROID_USER_HOME"); dir != "" {
		return filepath.Join(dir, "avd"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".android", "avd"), nil
}

// LoadAVDs reads every <name>.ini in dir together with the config.ini of
// the AVD data directory it points to. Broken definitions are skipped.
func LoadAVDs(dir string) ([]AVD, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.ini"))
	if err != nil {
		return nil, err
	}

	avds := make([]AVD, 0, len(matches))
	for _, file := range matches {
		name := strings.TrimSuffix(filepath.Base(file), ".ini")
		avd, err := loadAVD(dir, name, file)
		if err != nil {
			utils.Verbose("Skipping AVD %s: %v", name, err)
			continue
		}
		avds = append(avds, avd)
	}

	sort.Slice(avds, func(i, j int) bool {
		return avds[i].Name < avds[j].Name
	})
	return avds, nil
}

func loadAVD(dir, name, file string) (AVD, error) {
	pointer, err := ini.Load(file)
	if err != nil {
		return AVD{}, err
	}

	dataDir := pointer.Section("").Key("path").String()
	if dataDir == "" || !utils.FileExists(filepath.Join(dataDir, "config.ini")) {
		// the emulator falls back to <avd home>/<name>.avd when path is stale
		dataDir = filepath.Join(dir, name+".avd")
	}

	cfg, err := ini.Load(filepath.Join(dataDir, "config.ini"))
	if err != nil {
		return AVD{}, err
	}
	section := cfg.Section("")

	display := section.Key("avd.ini.displayname").String()
	if display == "" {
		display = strings.ReplaceAll(name, "_", " ")
	}
	// "Pixel 6 (Google)" is shown as "Pixel 6"
	if idx := strings.Index(display, " ("); idx > 0 {
		display = display[:idx]
	}

	return AVD{
		Name:        name,
		DisplayName: display,
		APILevel:    apiLevel(section),
	}, nil
}

// apiLevel reads the level from target=android-34, or from the system
// image path when target is missing.
func apiLevel(section *ini.Section) string {
	if target := section.Key("target").String(); strings.HasPrefix(target, "android-") {
		return strings.TrimPrefix(target, "android-")
	}
	for _, part := range strings.Split(section.Key("image.sysdir.1").String(), "/") {
		if strings.HasPrefix(part, "android-") {
			return strings.TrimPrefix(part, "android-")
		}
	}
	return ""
}

// RunningAVD asks the emulator console behind serial for its AVD name.
func (a *Adb) RunningAVD(ctx context.Context, serial string) (string, error) {
	if !strings.HasPrefix(serial, "emulator-") {
		return "", errors.New("not an emulator serial: " + serial)
	}
	output, err := a.Run(ctx, propTimeout, "-s", serial, "emu", "avd", "name")
	if err != nil {
		return "", err
	}
	// the console answers "<name>\r\nOK"
	name := strings.TrimSpace(strings.SplitN(string(output), "\n", 2)[0])
	if name == "" || name == "OK" {
		return "", errors.New("emulator console returned no AVD name")
	}
	return name, nil
}

// matchAVDs fills Serial for the AVDs behind running emulators and names
// those emulators after their AVD.
func (a *Adb) matchAVDs(ctx context.Context, devices []Device, avds []AVD) {
	byName := make(map[string]int, len(avds))
	for i, avd := range avds {
		byName[avd.Name] = i
	}

	for i := range devices {
		d := &devices[i]
		if !strings.HasPrefix(d.ID, "emulator-") || !d.Ready() {
			continue
		}
		name, err := a.RunningAVD(ctx, d.ID)
		if err != nil {
			utils.Verbose("No AVD name for %s: %v", d.ID, err)
			continue
		}
		idx, ok := byName[name]
		if !ok {
			continue
		}
		avds[idx].Serial = d.ID
		d.Name = name
		if d.Model == "" || d.Model == UnknownValue {
			d.Model = avds[idx].DisplayName
		}
		d.Version = avds[idx].Version()
	}
}

// stoppedAVDs returns offline entries for the AVDs without a running emulator.
func stoppedAVDs(avds []AVD) []Device {
	var stopped []Device
	for _, avd := range avds {
		if avd.Serial != "" {
			continue
		}
		stopped = append(stopped, Device{
			ID:             avd.Name,
			Status:         StatusOffline,
			ConnectionType: ConnectionWired,
			Model:          avd.DisplayName,
			Name:           avd.Name,
			Version:        avd.Version(),
		})
	}
	return stopped
}
