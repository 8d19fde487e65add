package devices

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner answers adb invocations from a table keyed by the joined args.
type fakeRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeRunner) run(ctx context.Context, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return []byte(f.outputs[key]), err
	}
	return []byte(f.outputs[key]), nil
}

func (f *fakeRunner) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

const devicesOutput = `List of devices attached
R58M123ABC             device usb:1-1 product:beyond1lteeea model:SM_G973F device:beyond1 transport_id:3
192.168.1.50:5555      device product:sunfish model:Pixel_4a device:sunfish transport_id:5
emulator-5554          offline
ZY22XYZ                unauthorized usb:1-2 transport_id:7

`

func TestParseDevicesOutput(t *testing.T) {
	devices := ParseDevicesOutput(devicesOutput)
	require.Len(t, devices, 4)

	assert.Equal(t, "R58M123ABC", devices[0].ID)
	assert.Equal(t, StatusDevice, devices[0].Status)
	assert.Equal(t, ConnectionWired, devices[0].ConnectionType)
	assert.Equal(t, "SM G973F", devices[0].Model)
	assert.Equal(t, "beyond1", devices[0].Name)
	assert.Equal(t, "beyond1lteeea", devices[0].Product)
	assert.Equal(t, "3", devices[0].TransportID)

	assert.Equal(t, ConnectionWireless, devices[1].ConnectionType)
	assert.Equal(t, StatusOffline, devices[2].Status)
	assert.Equal(t, "emulator", devices[2].Type())
	assert.Equal(t, StatusUnauthorized, devices[3].Status)
	assert.Equal(t, "real", devices[3].Type())
}

func TestParseDevicesOutput_EdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   int
	}{
		{"empty", "", 0},
		{"header only", "List of devices attached\n", 0},
		{"daemon start noise", "List of devices attached\n* daemon started successfully\nabc device\n", 1},
		{"single field line skipped", "List of devices attached\nabc\n", 0},
		{"windows line endings", "List of devices attached\r\nabc\tdevice\r\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ParseDevicesOutput(tt.output), tt.want)
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input    string
		wantIP   string
		wantPort int
		wantErr  error
	}{
		{"192.168.1.50", "192.168.1.50", 5555, nil},
		{"192.168.1.50:37000", "192.168.1.50", 37000, nil},
		{" 10.0.0.2 : 5556 ", "10.0.0.2", 5556, nil},
		{"", "", 0, ErrInvalidAddress},
		{":5555", "", 0, ErrInvalidAddress},
		{"1.2.3.4:5:6", "", 0, ErrInvalidAddress},
		{"1.2.3.4:abc", "", 0, ErrInvalidPort},
		{"1.2.3.4:0", "", 0, ErrInvalidPort},
		{"1.2.3.4:65536", "", 0, ErrInvalidPort},
		{"1.2.3.4:65535", "1.2.3.4", 65535, nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ip, port, err := ParseAddress(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIP, ip)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

func TestAdb_ListDevices(t *testing.T) {
	fake := newFakeRunner()
	fake.outputs["devices -l"] = devicesOutput
	fake.outputs["-s R58M123ABC shell getprop ro.product.model"] = "SM-G973F\n"
	fake.outputs["-s R58M123ABC shell getprop ro.product.device"] = "beyond1\n"
	fake.errs["-s 192.168.1.50:5555 shell getprop ro.product.model"] = errors.New("closed")
	fake.errs["-s 192.168.1.50:5555 shell getprop ro.product.device"] = errors.New("closed")

	adb := NewAdbWithRunner("adb", fake.run)
	devices, err := adb.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 4)

	assert.Equal(t, "SM-G973F", devices[0].Model)
	assert.Equal(t, "beyond1", devices[0].Name)

	// getprop failed: falls back to the -l fields
	assert.Equal(t, "Pixel 4a", devices[1].Model)
	assert.Equal(t, "sunfish", devices[1].Name)

	// offline: no getprop, no -l fields
	assert.Equal(t, UnknownValue, devices[2].Model)
	assert.Equal(t, UnknownValue, devices[2].Name)
	assert.Zero(t, fake.count("-s emulator-5554 shell getprop ro.product.model"))

	assert.True(t, adb.IsConnected("R58M123ABC"))
	assert.False(t, adb.IsConnected("emulator-5554"))
	assert.False(t, adb.IsConnected("missing"))

	info, ok := adb.DeviceInfo("ZY22XYZ")
	require.True(t, ok)
	assert.Equal(t, StatusUnauthorized, info.Status)
}

func TestAdb_ListDevices_CachesProperties(t *testing.T) {
	fake := newFakeRunner()
	fake.outputs["devices -l"] = "List of devices attached\nabc device\n"
	fake.outputs["-s abc shell getprop ro.product.model"] = "Pixel 7\n"
	fake.outputs["-s abc shell getprop ro.product.device"] = "panther\n"

	adb := NewAdbWithRunner("adb", fake.run)
	for i := 0; i < 3; i++ {
		_, err := adb.ListDevices(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fake.count("-s abc shell getprop ro.product.model"))

	adb.ForgetProperties("abc")
	_, err := adb.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fake.count("-s abc shell getprop ro.product.model"))
}

func TestAdb_ListDevices_Error(t *testing.T) {
	fake := newFakeRunner()
	fake.errs["devices -l"] = &ExecError{Args: []string{"devices", "-l"}, Err: errors.New("exit status 1")}

	adb := NewAdbWithRunner("adb", fake.run)
	devices, err := adb.ListDevices(context.Background())
	assert.Error(t, err)
	assert.Nil(t, devices)
}

func TestAdb_Connect(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		err     error
		wantErr string
	}{
		{"connected", "connected to 192.168.1.50:5555\n", nil, ""},
		{"already connected", "already connected to 192.168.1.50:5555\n", nil, ""},
		{"cannot connect", "cannot connect to 192.168.1.50:5555: Connection refused\n", nil, "cannot connect to 192.168.1.50:5555: Connection refused"},
		{"failed", "failed to connect to '192.168.1.50:5555': Connection refused\n", nil, "failed to connect"},
		{"exit error", "", &ExecError{Stderr: "error: unknown host", Err: errors.New("exit status 1")}, "error: unknown host"},
		{"timeout", "", context.DeadlineExceeded, "connection timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeRunner()
			fake.outputs["connect 192.168.1.50:5555"] = tt.output
			if tt.err != nil {
				fake.errs["connect 192.168.1.50:5555"] = tt.err
			}

			err := NewAdbWithRunner("adb", fake.run).Connect(context.Background(), "192.168.1.50", 5555)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAdb_Pair(t *testing.T) {
	fake := newFakeRunner()
	fake.outputs["pair 192.168.1.50:37001 123456"] = "Successfully paired to 192.168.1.50:37001 [guid=adb-XYZ]\n"
	fake.outputs["pair 192.168.1.50:37001 000000"] = "Failed: Wrong password or connection was dropped.\n"

	adb := NewAdbWithRunner("adb", fake.run)
	assert.NoError(t, adb.Pair(context.Background(), "192.168.1.50:37001", "123456"))

	err := adb.Pair(context.Background(), "192.168.1.50:37001", "000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Wrong password")
}

func TestAdb_DisconnectAndVersion(t *testing.T) {
	fake := newFakeRunner()
	fake.outputs["disconnect 192.168.1.50:5555"] = "disconnected 192.168.1.50:5555\n"
	fake.outputs["version"] = "Android Debug Bridge version 1.0.41\nVersion 35.0.2-12147458\n"

	fake.outputs["-s 192.168.1.50:5555 shell getprop ro.product.model"] = "Pixel 4a\n"

	adb := NewAdbWithRunner("adb", fake.run)
	ctx := context.Background()
	assert.Equal(t, "Pixel 4a", adb.property(ctx, "192.168.1.50:5555", "ro.product.model", ""))
	assert.Equal(t, "Pixel 4a", adb.property(ctx, "192.168.1.50:5555", "ro.product.model", ""))
	assert.Equal(t, 1, fake.count("-s 192.168.1.50:5555 shell getprop ro.product.model"))

	// disconnecting drops the cached properties
	assert.NoError(t, adb.Disconnect(ctx, "192.168.1.50:5555"))
	adb.property(ctx, "192.168.1.50:5555", "ro.product.model", "")
	assert.Equal(t, 2, fake.count("-s 192.168.1.50:5555 shell getprop ro.product.model"))

	version, err := adb.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Android Debug Bridge version 1.0.41", version)
}

func TestCountReady(t *testing.T) {
	authorized, total := CountReady(ParseDevicesOutput(devicesOutput))
	assert.Equal(t, 2, authorized)
	assert.Equal(t, 3, total)
}
