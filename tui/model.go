package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/mirrordroid/mirrordroid/devices"
	"github.com/mirrordroid/mirrordroid/i18n"
	"github.com/mirrordroid/mirrordroid/scrcpy"
)

const (
	defaultRefreshInterval = 5 * time.Second
	actionTimeout          = 30 * time.Second
	tableHeight            = 12
)

type inputMode int

const (
	modeBrowse inputMode = iota
	modeConnect
	modePairAddress
	modePairCode
)

type devicesMsg struct {
	resp *commands.DevicesResponse
	err  error
}

type tickMsg time.Time

type sessionEventMsg scrcpy.Event

// resultMsg carries the outcome of an action; refresh asks for a new device listing.
type resultMsg struct {
	text    string
	err     error
	refresh bool
}

type Model struct {
	rt      *commands.Runtime
	version string

	table   table.Model
	input   textinput.Model
	mode    inputMode
	pairing string

	devices     []commands.DeviceStatus
	authorized  int
	autoRefresh bool
	message     string
	failed      bool

	events <-chan scrcpy.Event
	width  int
	styles Styles
}

// NewModel builds the device screen. events may be nil.
func NewModel(rt *commands.Runtime, events <-chan scrcpy.Event) Model {
	t := table.New(
		table.WithFocused(true),
		table.WithHeight(tableHeight),
		table.WithStyles(tableStyles()),
	)

	ti := textinput.New()
	ti.CharLimit = 64
	ti.Width = 32

	m := Model{
		rt:          rt,
		version:     rt.Version,
		table:       t,
		input:       ti,
		autoRefresh: rt.Store.AppSettings().AutoRefresh,
		events:      events,
		styles:      DefaultStyles(),
	}
	m.message = m.tr("status.ready")
	m.table.SetColumns(m.columns())
	return m
}

func (m Model) tr(key string, args ...i18n.Args) string {
	return m.rt.Tr(key, args...)
}

func (m Model) columns() []table.Column {
	return []table.Column{
		{Title: m.tr("table.id"), Width: 24},
		{Title: m.tr("table.model"), Width: 18},
		{Title: m.tr("table.name"), Width: 14},
		{Title: m.tr("table.status"), Width: 13},
		{Title: m.tr("table.connection"), Width: 10},
		{Title: m.tr("table.mirroring"), Width: 10},
	}
}

func (m Model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.devices))
	for _, d := range m.devices {
		connection := m.tr("connection.wired")
		if d.ConnectionType == devices.ConnectionWireless {
			connection = m.tr("connection.wireless")
		}
		mirroring := m.tr("table.idle")
		if d.Running {
			mirroring = m.tr("table.running")
			if d.Kind == scrcpy.KindCamera {
				mirroring = m.tr("table.camera")
			}
		}
		rows = append(rows, table.Row{d.ID, d.Model, d.Name, d.Status, connection, mirroring})
	}
	return rows
}

func (m Model) refreshInterval() time.Duration {
	d := time.Duration(m.rt.Store.AppSettings().RefreshInterval) * time.Second
	if d <= 0 {
		return defaultRefreshInterval
	}
	return d
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick(), m.waitEvent())
}

func (m Model) refresh() tea.Cmd {
	rt := m.rt
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		resp, err := rt.ListDevices(ctx, false)
		return devicesMsg{resp: resp, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refreshInterval(), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return sessionEventMsg(e)
	}
}

// action runs fn off the UI loop and reports its outcome.
func action(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		text, err := fn(ctx)
		return resultMsg{text: text, err: err, refresh: true}
	}
}

func responseAction(fn func(ctx context.Context) *commands.CommandResponse) tea.Cmd {
	return action(func(ctx context.Context) (string, error) {
		resp := fn(ctx)
		if resp.Status == "error" {
			return "", errors.New(resp.Error)
		}
		if data, ok := resp.Data.(map[string]interface{}); ok {
			if text, ok := data["message"].(string); ok {
				return text, nil
			}
		}
		return "", nil
	})
}

func (m Model) selected() (commands.DeviceStatus, bool) {
	row := m.table.SelectedRow()
	if row == nil {
		return commands.DeviceStatus{}, false
	}
	for _, d := range m.devices {
		if d.ID == row[0] {
			return d, true
		}
	}
	return commands.DeviceStatus{}, false
}

func (m *Model) setMessage(text string, failed bool) {
	m.message = text
	m.failed = failed
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case devicesMsg:
		if msg.err != nil {
			m.setMessage(m.tr("messages.refresh_failed", i18n.Args{"error": msg.err}), true)
			return m, nil
		}
		m.devices = msg.resp.Devices
		m.authorized = msg.resp.Authorized
		m.table.SetRows(m.rows())
		return m, nil

	case tickMsg:
		if m.autoRefresh {
			return m, tea.Batch(m.refresh(), m.tick())
		}
		return m, m.tick()

	case sessionEventMsg:
		switch msg.Type {
		case scrcpy.EventFinished:
			m.setMessage(m.tr("messages.scrcpy_finished", i18n.Args{"device": msg.DeviceID, "code": msg.ExitCode}), msg.ExitCode != 0)
		case scrcpy.EventError:
			m.setMessage(m.tr("messages.scrcpy_error", i18n.Args{"device": msg.DeviceID, "error": msg.Message}), true)
		}
		return m, tea.Batch(m.refresh(), m.waitEvent())

	case resultMsg:
		if msg.err != nil {
			m.setMessage(msg.err.Error(), true)
		} else if msg.text != "" {
			m.setMessage(msg.text, false)
		}
		if msg.refresh {
			return m, m.refresh()
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.updatePrompt(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rt := m.rt

	switch msg.String() {
	case "q", "ctrl+c":
		rt.Scrcpy.StopAll()
		if err := rt.Store.Save(); err != nil {
			m.setMessage(err.Error(), true)
		}
		return m, tea.Quit

	case "r":
		return m, m.refresh()

	case "a":
		m.autoRefresh = !m.autoRefresh
		if err := rt.Store.SetAppSetting("auto_refresh", m.autoRefresh); err != nil {
			m.setMessage(err.Error(), true)
		}
		return m, nil

	case "S":
		return m, responseAction(func(ctx context.Context) *commands.CommandResponse {
			return commands.MirrorStopAllCommand()
		})

	case "i":
		return m.openPrompt(modeConnect, "prompt.connect")

	case "p":
		return m.openPrompt(modePairAddress, "prompt.pair_address")

	case "l":
		return m.nextLanguage()
	}

	device, ok := m.selected()
	switch msg.String() {
	case "enter", "s", "x", "c", "d", "D":
		if !ok {
			m.setMessage(m.tr("messages.no_device_selected"), true)
			return m, nil
		}
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	id := device.ID
	switch msg.String() {
	case "enter", "s":
		if !device.Ready() {
			m.setMessage(m.tr("messages.device_not_ready", i18n.Args{"device": id, "status": device.Status}), true)
			return m, nil
		}
		return m, action(func(ctx context.Context) (string, error) {
			resp, err := rt.StartMirror(ctx, id)
			if err != nil {
				return "", err
			}
			return resp.Message, nil
		})

	case "c":
		if !device.Ready() {
			m.setMessage(m.tr("messages.device_not_ready", i18n.Args{"device": id, "status": device.Status}), true)
			return m, nil
		}
		return m, action(func(ctx context.Context) (string, error) {
			resp, err := rt.StartCamera(ctx, commands.CameraStartRequest{DeviceID: id})
			if err != nil {
				return "", err
			}
			return resp.Message, nil
		})

	case "x":
		return m, responseAction(func(ctx context.Context) *commands.CommandResponse {
			return commands.MirrorStopCommand(commands.DeviceRequest{DeviceID: id})
		})

	case "d":
		return m, responseAction(func(ctx context.Context) *commands.CommandResponse {
			return commands.DisconnectCommand(ctx, commands.DeviceRequest{DeviceID: id})
		})

	case "D":
		return m, responseAction(func(ctx context.Context) *commands.CommandResponse {
			return commands.ForgetCommand(ctx, commands.DeviceRequest{DeviceID: id})
		})
	}

	return m, nil
}

func (m Model) openPrompt(mode inputMode, placeholderKey string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Reset()
	m.input.Placeholder = m.tr(placeholderKey)
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) closePrompt() Model {
	m.mode = modeBrowse
	m.pairing = ""
	m.input.Blur()
	m.input.Reset()
	return m
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m.closePrompt(), nil

	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			return m.closePrompt(), nil
		}

		rt := m.rt
		switch m.mode {
		case modeConnect:
			m = m.closePrompt()
			m.setMessage(m.tr("messages.connecting", i18n.Args{"address": value}), false)
			return m, action(func(ctx context.Context) (string, error) {
				address, err := rt.Connect(ctx, value)
				if err != nil {
					return "", err
				}
				return rt.Tr("messages.connected", i18n.Args{"address": address}), nil
			})

		case modePairAddress:
			m.pairing = value
			m.mode = modePairCode
			m.input.Reset()
			m.input.Placeholder = m.tr("prompt.pair_code")
			return m, nil

		case modePairCode:
			address := m.pairing
			m = m.closePrompt()
			return m, responseAction(func(ctx context.Context) *commands.CommandResponse {
				return commands.PairCodeCommand(ctx, commands.PairCodeRequest{Address: address, Code: value})
			})
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// nextLanguage switches to the next available language and relabels the table.
func (m Model) nextLanguage() (tea.Model, tea.Cmd) {
	catalog := m.rt.Catalog
	if catalog == nil {
		return m, nil
	}

	langs := catalog.Languages()
	next := langs[0]
	for i, lang := range langs {
		if lang == catalog.Language() {
			next = langs[(i+1)%len(langs)]
			break
		}
	}

	if err := catalog.SetLanguage(next); err != nil {
		m.setMessage(err.Error(), true)
		return m, nil
	}
	m.table.SetColumns(m.columns())
	m.table.SetRows(m.rows())
	m.setMessage(m.tr("messages.language_changed", i18n.Args{"language": next}), false)
	return m, nil
}

func (m Model) statusLine() string {
	refresh := m.tr("status.auto_refresh_off")
	if m.autoRefresh {
		refresh = m.tr("status.auto_refresh_on")
	}
	parts := []string{
		m.tr("status.devices", i18n.Args{"count": fmt.Sprintf("%d/%d", m.authorized, len(m.devices))}),
		m.tr("status.active", i18n.Args{"count": len(m.rt.Scrcpy.ActiveDevices())}),
		refresh,
		"v" + m.version,
	}
	return strings.Join(parts, " | ")
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render(m.tr("app.title")))
	b.WriteString("\n")

	if len(m.devices) == 0 {
		b.WriteString(m.styles.Status.Render(m.tr("table.empty")))
		b.WriteString("\n")
	} else {
		b.WriteString(m.styles.Frame.Render(m.table.View()))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Status.Render(m.statusLine()))
	b.WriteString("\n")

	messageStyle := m.styles.Message
	if m.failed {
		messageStyle = m.styles.Error
	}
	b.WriteString(messageStyle.Render(m.message))
	b.WriteString("\n")

	if m.mode != modeBrowse {
		prompt := lipgloss.JoinVertical(lipgloss.Left,
			m.input.View(),
			m.styles.Help.Render(m.tr("prompt.submit")),
		)
		b.WriteString(m.styles.Prompt.Render(prompt))
		b.WriteString("\n")
	} else {
		b.WriteString(m.styles.Help.Render(m.tr("app.help")))
		b.WriteString("\n")
	}

	return b.String()
}
