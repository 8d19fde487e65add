package pairing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mirrordroid/mirrordroid/devices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBridge struct {
	mu      sync.Mutex
	lists   [][]devices.Device
	calls   int
	paired  []string
	pairErr error
}

func (f *fakeBridge) ListDevices(ctx context.Context) ([]devices.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.lists) {
		idx = len(f.lists) - 1
	}
	f.calls++
	return f.lists[idx], nil
}

func (f *fakeBridge) Pair(ctx context.Context, hostPort, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paired = append(f.paired, hostPort+" "+code)
	return f.pairErr
}

type fakeBrowser struct {
	services []Service
}

func (b *fakeBrowser) Browse(ctx context.Context, service string, found func(Service)) error {
	if service != PairingService {
		return errors.New("unexpected service " + service)
	}
	for _, s := range b.services {
		found(s)
	}
	<-ctx.Done()
	return nil
}

func dev(id, status string) devices.Device {
	return devices.Device{ID: id, Status: status}
}

func TestValidateCode(t *testing.T) {
	assert.NoError(t, ValidateCode("123456"))
	for _, code := range []string{"", "12345", "1234567", "12a456", "12 456"} {
		assert.ErrorIs(t, ValidateCode(code), ErrInvalidCode, code)
	}
}

func TestPairWithCode(t *testing.T) {
	bridge := &fakeBridge{}

	hostPort, err := PairWithCode(context.Background(), bridge, "192.168.1.50:37001", "123456")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50:37001", hostPort)
	assert.Equal(t, []string{"192.168.1.50:37001 123456"}, bridge.paired)

	_, err = PairWithCode(context.Background(), bridge, "192.168.1.50:0", "123456")
	assert.ErrorIs(t, err, devices.ErrInvalidPort)

	// no default port: 5555 is the connect port, never the pairing one
	_, err = PairWithCode(context.Background(), bridge, "192.168.1.50", "123456")
	assert.ErrorIs(t, err, devices.ErrInvalidPort)
	assert.Len(t, bridge.paired, 1)

	_, err = PairWithCode(context.Background(), bridge, "192.168.1.50:37001", "12")
	assert.ErrorIs(t, err, ErrInvalidCode)

	bridge.pairErr = errors.New("Failed: Wrong password")
	_, err = PairWithCode(context.Background(), bridge, "192.168.1.50:37001", "123456")
	assert.ErrorContains(t, err, "Wrong password")
}

func TestQRSession(t *testing.T) {
	session, err := NewQRSession()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(session.Name, "ADB_WIFI_"))
	assert.Len(t, session.Name, len("ADB_WIFI_")+8)
	assert.Len(t, session.Password, 8)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "WIFI:T:ADB;S:"+session.Name+";P:"+session.Password+";;", session.Payload())

	other, err := NewQRSession()
	require.NoError(t, err)
	assert.NotEqual(t, session.Password, other.Password)

	text, err := session.Terminal()
	require.NoError(t, err)
	assert.NotEmpty(t, text)

	png, err := session.PNG(256)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))
}

func collect() (func(Status), func() []Status) {
	var mu sync.Mutex
	var statuses []Status
	return func(s Status) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, s)
		}, func() []Status {
			mu.Lock()
			defer mu.Unlock()
			return append([]Status(nil), statuses...)
		}
}

func fastPairer(bridge Bridge, browser Browser) *Pairer {
	p := NewPairer(bridge, browser)
	p.PollInterval = 10 * time.Millisecond
	p.Timeout = 2 * time.Second
	return p
}

func TestRunQR_Connects(t *testing.T) {
	session, err := NewQRSession()
	require.NoError(t, err)

	bridge := &fakeBridge{lists: [][]devices.Device{
		{dev("usb1", devices.StatusDevice)},
		{dev("usb1", devices.StatusDevice)},
		{dev("usb1", devices.StatusDevice), dev("192.168.1.50:41234", devices.StatusDevice)},
	}}
	browser := &fakeBrowser{services: []Service{
		{Instance: "ADB_WIFI_other", Addresses: []string{"192.168.1.77"}, Port: 1111},
		{Instance: session.Name, Addresses: []string{"192.168.1.50"}, Port: 37001},
	}}

	notify, statuses := collect()
	err = fastPairer(bridge, browser).RunQR(context.Background(), session, notify)
	require.NoError(t, err)

	got := statuses()
	require.NotEmpty(t, got)
	assert.Equal(t, StatusConnected, got[len(got)-1].Type)
	assert.Equal(t, 2, got[len(got)-1].Devices)
	for _, s := range got {
		assert.Equal(t, session.ID, s.SessionID)
	}

	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	assert.Equal(t, []string{"192.168.1.50:37001 " + session.Password}, bridge.paired)
}

func TestRunQR_UnauthorizedThenTimeout(t *testing.T) {
	session, err := NewQRSession()
	require.NoError(t, err)

	bridge := &fakeBridge{lists: [][]devices.Device{
		{},
		{dev("192.168.1.50:41234", devices.StatusUnauthorized)},
	}}
	p := fastPairer(bridge, nil)
	p.Timeout = 200 * time.Millisecond

	notify, statuses := collect()
	err = p.RunQR(context.Background(), session, notify)
	assert.ErrorIs(t, err, ErrTimeout)

	types := map[StatusType]bool{}
	for _, s := range statuses() {
		types[s.Type] = true
	}
	assert.True(t, types[StatusUnauthorized])
	assert.True(t, types[StatusTimeout])
}

func TestRunQR_Canceled(t *testing.T) {
	session, err := NewQRSession()
	require.NoError(t, err)

	bridge := &fakeBridge{lists: [][]devices.Device{{}}}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err = fastPairer(bridge, &fakeBrowser{}).RunQR(ctx, session, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscover(t *testing.T) {
	browser := &fakeBrowser{services: []Service{
		{Instance: "b", Addresses: []string{"10.0.0.2"}, Port: 2},
		{Instance: "a", Addresses: []string{"10.0.0.1"}, Port: 1},
		{Instance: "a", Addresses: []string{"10.0.0.1"}, Port: 1},
	}}

	services, err := Discover(context.Background(), browser, PairingService, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "a", services[0].Instance)
	assert.Equal(t, "10.0.0.1:1", services[0].Address())
}

func TestService_Address(t *testing.T) {
	assert.Equal(t, "", Service{Port: 5555}.Address())
	assert.Equal(t, "[fe80::1]:5555", Service{Addresses: []string{"fe80::1"}, Port: 5555}.Address())
}
