package cli

import (
	"fmt"
	"net"
	"testing"

	"github.com/mirrordroid/mirrordroid/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValues(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "pairs",
			args: []string{"video.max_size=1024", "display.window_title=a=b"},
			want: map[string]string{"video.max_size": "1024", "display.window_title": "a=b"},
		},
		{
			name: "empty value",
			args: []string{"video.codec="},
			want: map[string]string{"video.codec": ""},
		},
		{name: "missing equals", args: []string{"video.max_size"}, wantErr: true},
		{name: "missing key", args: []string{"=1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseValues(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCameraProfileFromFlags(t *testing.T) {
	stored := config.DefaultCameraProfile()
	stored.Camera.CameraSize = "1280x720"

	_, changed := cameraProfileFromFlags(cameraStartCmd, stored)
	assert.False(t, changed)

	require.NoError(t, cameraStartCmd.Flags().Set("camera-id", "1"))
	require.NoError(t, cameraStartCmd.Flags().Set("fps", "60"))
	t.Cleanup(func() {
		cameraStartCmd.Flags().Lookup("camera-id").Changed = false
		cameraStartCmd.Flags().Lookup("fps").Changed = false
		cameraID, cameraFPS = "", 30
	})

	profile, changed := cameraProfileFromFlags(cameraStartCmd, stored)
	assert.True(t, changed)
	assert.Equal(t, "1", profile.Camera.CameraID)
	assert.Equal(t, 60, profile.Camera.CameraFPS)
	// flags that were not set keep the stored value
	assert.Equal(t, "1280x720", profile.Camera.CameraSize)
	assert.Equal(t, "back", profile.Camera.CameraFacing)
}

func TestCommandAnnotations(t *testing.T) {
	assert.True(t, hasAnnotation(mirrorStopCmd, annotationNoRuntime))
	assert.True(t, hasAnnotation(serverKillCmd, annotationNoRuntime))
	assert.True(t, hasAnnotation(serverTokenCmd, annotationNoRuntime))
	assert.False(t, hasAnnotation(mirrorStartCmd, annotationNoRuntime))

	assert.True(t, hasAnnotation(settingsLanguageCmd, annotationOptionalBinaries))
	assert.True(t, hasAnnotation(doctorCmd, annotationOptionalBinaries))
	assert.True(t, hasAnnotation(cameraV4L2TestCmd, annotationOptionalBinaries))
	assert.False(t, hasAnnotation(cameraStartCmd, annotationOptionalBinaries))
	assert.False(t, hasAnnotation(devicesCmd, annotationOptionalBinaries))

	assert.True(t, needsScrcpy(mirrorStartCmd))
	assert.True(t, needsScrcpy(cameraListCmd))
	assert.True(t, needsScrcpy(uiCmd))
	assert.False(t, needsScrcpy(devicesCmd))
	assert.False(t, needsScrcpy(pairCodeCmd))
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"devices", "device", "mirror", "camera", "settings", "pair", "server", "doctor", "ui"} {
		assert.True(t, names[name], name)
	}
}

func TestCheckListenAddr(t *testing.T) {
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	assert.ErrorContains(t, checkListenAddr(fmt.Sprintf("localhost:%d", port)), "already in use")
	assert.Error(t, checkListenAddr("not-a-port"))
	assert.NoError(t, checkListenAddr("127.0.0.1:0"))
}
