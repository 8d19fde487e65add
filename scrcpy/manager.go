package scrcpy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mirrordroid/mirrordroid/utils"
)

var (
	ErrAlreadyRunning = errors.New("scrcpy is already running for this device")
	ErrNotRunning     = errors.New("scrcpy is not running for this device")
)

const defaultStopTimeout = 3 * time.Second

type Kind string

const (
	KindMirror Kind = "mirror"
	KindCamera Kind = "camera"
)

// Session describes a running scrcpy child.
type Session struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Kind      Kind      `json:"kind"`
	PID       int       `json:"pid"`
	Args      []string  `json:"args"`
	StartedAt time.Time `json:"started_at"`
}

// CommandFactory builds the child command; tests replace it.
type CommandFactory func(name string, args ...string) *exec.Cmd

type process struct {
	session  Session
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int
}

// Manager keeps at most one scrcpy process per device.
type Manager struct {
	path   string
	newCmd CommandFactory

	// StopTimeout is how long Stop waits after the interrupt before killing.
	StopTimeout time.Duration

	mu        sync.Mutex
	processes map[string]*process
	// exited keeps the last finished process per device until Wait or the
	// next Start collects it.
	exited map[string]*process

	events *broadcaster
}

func NewManager(path string) *Manager {
	return NewManagerWithFactory(path, exec.Command)
}

func NewManagerWithFactory(path string, factory CommandFactory) *Manager {
	return &Manager{
		path:        path,
		newCmd:      factory,
		StopTimeout: defaultStopTimeout,
		processes:   make(map[string]*process),
		exited:      make(map[string]*process),
		events:      newBroadcaster(),
	}
}

func (m *Manager) Path() string {
	return m.path
}

// Start spawns scrcpy with args for deviceID.
func (m *Manager) Start(deviceID string, kind Kind, args []string) (Session, error) {
	m.mu.Lock()
	if p, ok := m.processes[deviceID]; ok && !p.finished() {
		m.mu.Unlock()
		return Session{}, ErrAlreadyRunning
	}

	utils.Verbose("Scrcpy command: %s %s", m.path, strings.Join(args, " "))
	cmd := m.newCmd(m.path, args...)
	utils.ConfigureDetachedProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		m.mu.Unlock()
		return Session{}, m.startFailed(deviceID, kind, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		m.mu.Unlock()
		return Session{}, m.startFailed(deviceID, kind, err)
	}

	if err := cmd.Start(); err != nil {
		m.mu.Unlock()
		return Session{}, m.startFailed(deviceID, kind, err)
	}

	p := &process{
		session: Session{
			ID:        uuid.New().String(),
			DeviceID:  deviceID,
			Kind:      kind,
			PID:       cmd.Process.Pid,
			Args:      append([]string(nil), args...),
			StartedAt: time.Now(),
		},
		cmd:  cmd,
		done: make(chan struct{}),
	}
	m.processes[deviceID] = p
	delete(m.exited, deviceID)
	m.mu.Unlock()

	utils.Verbose("scrcpy started for %s (pid %d)", deviceID, p.session.PID)
	m.events.publish(Event{
		Type:      EventStarted,
		DeviceID:  deviceID,
		SessionID: p.session.ID,
		Kind:      kind,
		PID:       p.session.PID,
		Time:      time.Now(),
	})

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		m.pump(p, stdout, false)
	}()
	go func() {
		defer readers.Done()
		m.pump(p, stderr, true)
	}()
	go m.monitor(p, &readers)

	return p.session, nil
}

func (m *Manager) startFailed(deviceID string, kind Kind, err error) error {
	err = fmt.Errorf("failed to start scrcpy: %w", err)
	m.events.publish(Event{
		Type:     EventError,
		DeviceID: deviceID,
		Kind:     kind,
		Message:  err.Error(),
		Time:     time.Now(),
	})
	return err
}

// pump forwards child output to the log; stderr lines are also published.
func (m *Manager) pump(p *process, r io.Reader, isStderr bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !isStderr {
			utils.Verbose("[scrcpy:%s] %s", p.session.DeviceID, line)
			continue
		}
		utils.Verbose("[scrcpy:%s:err] %s", p.session.DeviceID, line)
		m.events.publish(Event{
			Type:      EventStderr,
			DeviceID:  p.session.DeviceID,
			SessionID: p.session.ID,
			Kind:      p.session.Kind,
			Message:   line,
			Time:      time.Now(),
		})
	}
}

// monitor waits for the child to exit and clears its entry.
func (m *Manager) monitor(p *process, readers *sync.WaitGroup) {
	// all pipe reads must finish before Wait
	readers.Wait()
	err := p.cmd.Wait()

	exitCode := 0
	if p.cmd.ProcessState != nil {
		exitCode = p.cmd.ProcessState.ExitCode()
	} else if err != nil {
		exitCode = -1
	}
	p.exitCode = exitCode

	m.mu.Lock()
	current, ok := m.processes[p.session.DeviceID]
	if !ok || current == p {
		delete(m.processes, p.session.DeviceID)
		m.exited[p.session.DeviceID] = p
	}
	close(p.done)
	m.mu.Unlock()

	utils.Verbose("scrcpy for %s exited with code %d", p.session.DeviceID, exitCode)
	m.events.publish(Event{
		Type:      EventFinished,
		DeviceID:  p.session.DeviceID,
		SessionID: p.session.ID,
		Kind:      p.session.Kind,
		ExitCode:  exitCode,
		Time:      time.Now(),
	})
}

func (p *process) finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Stop interrupts the device's scrcpy, waits StopTimeout and then kills it.
// It reports whether a session was running.
func (m *Manager) Stop(deviceID string) bool {
	m.mu.Lock()
	p, ok := m.processes[deviceID]
	m.mu.Unlock()
	if !ok || p.finished() {
		return false
	}

	utils.Verbose("Stopping scrcpy for %s (pid %d)", deviceID, p.session.PID)
	if err := utils.InterruptProcess(p.cmd.Process); err != nil {
		utils.Verbose("Failed to interrupt scrcpy for %s: %v", deviceID, err)
	}

	select {
	case <-p.done:
	case <-time.After(m.StopTimeout):
		utils.Verbose("scrcpy for %s did not exit in %v, killing", deviceID, m.StopTimeout)
		if err := p.cmd.Process.Kill(); err != nil {
			utils.Verbose("Failed to kill scrcpy for %s: %v", deviceID, err)
		}
		<-p.done
	}

	m.mu.Lock()
	if current, ok := m.processes[deviceID]; ok && current == p {
		delete(m.processes, deviceID)
	}
	m.mu.Unlock()

	return true
}

// StopAll stops every session and returns the affected device ids.
func (m *Manager) StopAll() []string {
	var stopped []string
	for _, deviceID := range m.ActiveDevices() {
		if m.Stop(deviceID) {
			stopped = append(stopped, deviceID)
		}
	}
	return stopped
}

func (m *Manager) IsRunning(deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processes[deviceID]
	return ok && !p.finished()
}

// ActiveDevices returns the ids with a live session, sorted.
func (m *Manager) ActiveDevices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.processes))
	for id, p := range m.processes {
		if !p.finished() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) Session(deviceID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.processes[deviceID]
	if !ok || p.finished() {
		return Session{}, false
	}
	return p.session, true
}

// Sessions returns the live sessions ordered by start time.
func (m *Manager) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]Session, 0, len(m.processes))
	for _, p := range m.processes {
		if !p.finished() {
			sessions = append(sessions, p.session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
	return sessions
}

// Wait blocks until the device's session exits and returns its exit code.
// A session that already exited is reported once.
func (m *Manager) Wait(ctx context.Context, deviceID string) (int, error) {
	m.mu.Lock()
	p, ok := m.processes[deviceID]
	if !ok {
		p, ok = m.exited[deviceID]
	}
	m.mu.Unlock()
	if !ok {
		return 0, ErrNotRunning
	}

	select {
	case <-p.done:
		m.mu.Lock()
		if m.exited[deviceID] == p {
			delete(m.exited, deviceID)
		}
		m.mu.Unlock()
		return p.exitCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Subscribe returns a channel of session events and a function that
// unsubscribes and closes it. Slow subscribers miss events.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.events.subscribe()
}
