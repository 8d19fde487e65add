package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBinaryInDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "scrcpy-win64-v3.1")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "scrcpy"), nil, 0o755))

	path, err := FindBinaryInDir(dir, []string{"scrcpy"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sub, "scrcpy"), path)
}

func TestFindBinaryInDir_PrefersRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adb"), nil, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "adb"), nil, 0o755))

	path, err := FindBinaryInDir(dir, []string{"adb"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "adb"), path)
}

func TestFindBinaryInDir_Errors(t *testing.T) {
	_, err := FindBinaryInDir("", []string{"adb"})
	assert.Error(t, err)

	_, err = FindBinaryInDir(t.TempDir(), nil)
	assert.Error(t, err)

	_, err = FindBinaryInDir(t.TempDir(), []string{"adb"})
	assert.Error(t, err)
}

func TestResolveBinary_Explicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my-adb")
	require.NoError(t, os.WriteFile(path, nil, 0o755))

	got, err := ResolveBinary(BinaryLookup{Name: "adb", Explicit: path})
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = ResolveBinary(BinaryLookup{Name: "adb", Explicit: path + "-missing"})
	assert.Error(t, err)
}

func TestResolveBinary_EnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrcpy")
	require.NoError(t, os.WriteFile(path, nil, 0o755))
	t.Setenv("MIRRORDROID_TEST_SCRCPY", path)

	got, err := ResolveBinary(BinaryLookup{Name: "scrcpy", EnvVar: "MIRRORDROID_TEST_SCRCPY"})
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestResolveBinary_NotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("ANDROID_HOME", "")
	t.Setenv("ANDROID_SDK_ROOT", "")

	_, err := ResolveBinary(BinaryLookup{Name: "definitely-not-a-real-binary-name"})
	assert.Error(t, err)
}
