package scrcpy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helperFactory re-executes the test binary as a fake scrcpy.
func helperFactory(name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
	cmd := exec.Command(os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

// TestHelperProcess is not a real test; it is the fake scrcpy child.
// The last argument selects its behaviour.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	mode := args[len(args)-1]
	switch mode {
	case "exit3":
		fmt.Fprintln(os.Stdout, "INFO: Renderer: direct3d")
		fmt.Fprintln(os.Stderr, "ERROR: Could not find any ADB device")
		os.Exit(3)
	case "sleep":
		time.Sleep(30 * time.Second)
	case "stubborn":
		signal.Ignore(os.Interrupt, syscall.SIGTERM)
		time.Sleep(30 * time.Second)
	}
	os.Exit(0)
}

func newTestManager() *Manager {
	m := NewManagerWithFactory("scrcpy", helperFactory)
	m.StopTimeout = 500 * time.Millisecond
	return m
}

func waitEvent(t *testing.T, ch <-chan Event, typ EventType) Event {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			require.True(t, ok, "event channel closed")
			if e.Type == typ {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", typ)
		}
	}
}

func TestManager_StartAndExit(t *testing.T) {
	m := newTestManager()
	events, cancel := m.Subscribe()
	defer cancel()

	session, err := m.Start("dev1", KindMirror, []string{"-s", "dev1", "exit3"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "dev1", session.DeviceID)
	assert.Equal(t, KindMirror, session.Kind)
	assert.Positive(t, session.PID)

	started := waitEvent(t, events, EventStarted)
	assert.Equal(t, session.ID, started.SessionID)

	stderr := waitEvent(t, events, EventStderr)
	assert.Equal(t, "ERROR: Could not find any ADB device", stderr.Message)

	finished := waitEvent(t, events, EventFinished)
	assert.Equal(t, 3, finished.ExitCode)
	assert.Equal(t, "dev1", finished.DeviceID)

	assert.False(t, m.IsRunning("dev1"))
	assert.Empty(t, m.ActiveDevices())
}

func TestManager_RefusesSecondSession(t *testing.T) {
	m := newTestManager()
	defer m.StopAll()

	_, err := m.Start("dev1", KindMirror, []string{"sleep"})
	require.NoError(t, err)

	_, err = m.Start("dev1", KindCamera, []string{"sleep"})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	_, err = m.Start("dev2", KindCamera, []string{"sleep"})
	require.NoError(t, err)

	assert.Equal(t, []string{"dev1", "dev2"}, m.ActiveDevices())
	sessions := m.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, KindMirror, sessions[0].Kind)
}

func TestManager_Stop(t *testing.T) {
	m := newTestManager()

	_, err := m.Start("dev1", KindMirror, []string{"sleep"})
	require.NoError(t, err)
	assert.True(t, m.IsRunning("dev1"))

	assert.True(t, m.Stop("dev1"))
	assert.False(t, m.IsRunning("dev1"))
	assert.False(t, m.Stop("dev1"))

	// the device can be mirrored again
	_, err = m.Start("dev1", KindMirror, []string{"sleep"})
	require.NoError(t, err)
	assert.True(t, m.Stop("dev1"))
}

func TestManager_StopKillsStubbornChild(t *testing.T) {
	m := newTestManager()

	_, err := m.Start("dev1", KindCamera, []string{"stubborn"})
	require.NoError(t, err)
	// give the child time to install its signal handler
	time.Sleep(300 * time.Millisecond)

	start := time.Now()
	assert.True(t, m.Stop("dev1"))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, m.IsRunning("dev1"))
}

func TestManager_StopAll(t *testing.T) {
	m := newTestManager()

	for _, id := range []string{"a", "b", "c"} {
		_, err := m.Start(id, KindMirror, []string{"sleep"})
		require.NoError(t, err)
	}

	assert.ElementsMatch(t, []string{"a", "b", "c"}, m.StopAll())
	assert.Empty(t, m.ActiveDevices())
	assert.Empty(t, m.StopAll())
}

func TestManager_Wait(t *testing.T) {
	m := newTestManager()

	_, err := m.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotRunning)

	_, err = m.Start("dev1", KindMirror, []string{"exit3"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	code, err := m.Wait(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestManager_WaitAfterExit(t *testing.T) {
	m := newTestManager()
	events, cancel := m.Subscribe()
	defer cancel()

	_, err := m.Start("dev1", KindMirror, []string{"exit3"})
	require.NoError(t, err)
	waitEvent(t, events, EventFinished)
	assert.False(t, m.IsRunning("dev1"))

	ctx, cancelWait := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelWait()
	code, err := m.Wait(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	// the exit code is reported once
	_, err = m.Wait(ctx, "dev1")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestManager_WaitAfterStop(t *testing.T) {
	m := newTestManager()

	_, err := m.Start("dev1", KindMirror, []string{"sleep"})
	require.NoError(t, err)
	require.True(t, m.Stop("dev1"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = m.Wait(ctx, "dev1")
	require.NoError(t, err)

	// a new session drops the previous exit code
	_, err = m.Start("dev1", KindMirror, []string{"exit3"})
	require.NoError(t, err)
	code, err := m.Wait(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestManager_StartFailure(t *testing.T) {
	m := NewManager("/nonexistent/scrcpy")
	events, cancel := m.Subscribe()
	defer cancel()

	_, err := m.Start("dev1", KindMirror, []string{"-s", "dev1"})
	require.Error(t, err)

	e := waitEvent(t, events, EventError)
	assert.Equal(t, "dev1", e.DeviceID)
	assert.False(t, m.IsRunning("dev1"))
}

func TestBroadcaster_DropsForSlowSubscriber(t *testing.T) {
	b := newBroadcaster()
	ch, cancel := b.subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.publish(Event{Type: EventStderr})
	}
	assert.Len(t, ch, subscriberBuffer)

	cancel()
	cancel()
	b.publish(Event{Type: EventStderr})
}
