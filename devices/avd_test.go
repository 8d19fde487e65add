package devices

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAVD lays out <dir>/<name>.ini and <dir>/<name>.avd/config.ini.
func writeAVD(t *testing.T, dir, name, config string) {
	t.Helper()

	dataDir := filepath.Join(dir, name+".avd")
	require.NoError(t, os.MkdirAll(dataDir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".ini"), []byte("path="+dataDir+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.ini"), []byte(config), 0644))
}

func TestAVDHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ANDROID_AVD_HOME", "")
	t.Setenv("ANDROID_USER_HOME", "")

	dir, err := AVDHome()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".android", "avd"), dir)

	t.Setenv("ANDROID_USER_HOME", "/opt/android-user")
	dir, err = AVDHome()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/opt/android-user", "avd"), dir)

	t.Setenv("ANDROID_AVD_HOME", "/opt/avd")
	dir, err = AVDHome()
	require.NoError(t, err)
	assert.Equal(t, "/opt/avd", dir)
}

func TestLoadAVDs(t *testing.T) {
	dir := t.TempDir()
	writeAVD(t, dir, "Pixel_9_Pro", "avd.ini.displayname=Pixel 9 Pro (Google)\ntarget=android-36\n")
	writeAVD(t, dir, "Small_Phone", "image.sysdir.1=system-images/android-34/google_apis/x86_64/\n")
	writeAVD(t, dir, "Bare", "")

	// stale path, the data directory sits next to the pointer file
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Moved.avd"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Moved.ini"), []byte("path=/nowhere/Moved.avd\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Moved.avd", "config.ini"), []byte("target=android-30\n"), 0644))

	// no config.ini at all
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Broken.ini"), []byte("path=/nowhere\n"), 0644))

	avds, err := LoadAVDs(dir)
	require.NoError(t, err)

	assert.Equal(t, []AVD{
		{Name: "Bare", DisplayName: "Bare"},
		{Name: "Moved", DisplayName: "Moved", APILevel: "30"},
		{Name: "Pixel_9_Pro", DisplayName: "Pixel 9 Pro", APILevel: "36"},
		{Name: "Small_Phone", DisplayName: "Small Phone", APILevel: "34"},
	}, avds)
	assert.Equal(t, "API 36", avds[2].Version())
	assert.Equal(t, "AVD", avds[0].Version())
}

func TestLoadAVDs_MissingDir(t *testing.T) {
	avds, err := LoadAVDs(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, avds)
}

func TestRunningAVD(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs["-s emulator-5554 emu avd name"] = "Pixel_9_Pro\r\nOK\r\n"
	runner.outputs["-s emulator-5556 emu avd name"] = "OK\r\n"
	runner.errs["-s emulator-5558 emu avd name"] = errors.New("exit status 1")
	adb := NewAdbWithRunner("adb", runner.run)
	ctx := context.Background()

	name, err := adb.RunningAVD(ctx, "emulator-5554")
	require.NoError(t, err)
	assert.Equal(t, "Pixel_9_Pro", name)

	_, err = adb.RunningAVD(ctx, "emulator-5556")
	assert.Error(t, err)
	_, err = adb.RunningAVD(ctx, "emulator-5558")
	assert.Error(t, err)

	_, err = adb.RunningAVD(ctx, "R58M123ABC")
	assert.Error(t, err)
	assert.Zero(t, runner.count("-s R58M123ABC emu avd name"))
}

func TestListAllDevices_MatchesEmulatorsToAVDs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANDROID_AVD_HOME", dir)
	writeAVD(t, dir, "Pixel_9_Pro", "avd.ini.displayname=Pixel 9 Pro\ntarget=android-36\n")
	writeAVD(t, dir, "Tablet", "avd.ini.displayname=Tablet (Google)\ntarget=android-34\n")

	runner := newFakeRunner()
	runner.outputs["devices -l"] = "List of devices attached\n" +
		"R58M123ABC     device usb:1-1 product:beyond1lteeea model:SM_G973F device:beyond1\n" +
		"emulator-5554  device product:sdk_gphone64 model:sdk_gphone64_x86_64 device:emu64xa\n"
	runner.outputs["-s emulator-5554 emu avd name"] = "Pixel_9_Pro\r\nOK\r\n"
	adb := NewAdbWithRunner("adb", runner.run)

	list, err := adb.ListAllDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)

	// the running AVD is reported once, under its emulator serial
	emulator := list[1]
	assert.Equal(t, "emulator-5554", emulator.ID)
	assert.Equal(t, "Pixel_9_Pro", emulator.Name)
	assert.Equal(t, "API 36", emulator.Version)
	assert.Equal(t, "emulator", emulator.Type())

	stopped := list[2]
	assert.Equal(t, "Tablet", stopped.ID)
	assert.Equal(t, StatusOffline, stopped.Status)
	assert.Equal(t, "Tablet", stopped.Model)
	assert.Equal(t, "API 34", stopped.Version)
	assert.Equal(t, "emulator", stopped.Type())

	assert.Zero(t, runner.count("-s R58M123ABC emu avd name"))
}

func TestListAllDevices_UnknownEmulatorKeepsModel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANDROID_AVD_HOME", dir)
	writeAVD(t, dir, "Tablet", "target=android-34\n")

	runner := newFakeRunner()
	runner.outputs["devices -l"] = "List of devices attached\nemulator-5556  device\n"
	runner.outputs["-s emulator-5556 emu avd name"] = "Other_Avd\r\nOK\r\n"
	runner.outputs["-s emulator-5556 shell getprop ro.product.model"] = "sdk_gphone64\n"
	adb := NewAdbWithRunner("adb", runner.run)

	list, err := adb.ListAllDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sdk_gphone64", list[0].Model)
	assert.Empty(t, list[0].Version)
	assert.Equal(t, "Tablet", list[1].ID)
}
