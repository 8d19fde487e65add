package server

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/mirrordroid/mirrordroid/utils"
)

type EventType string

const (
	EventSession EventType = "session"
	EventPairing EventType = "pairing"
	EventDevices EventType = "devices"
	EventConfig  EventType = "config"
)

const eventMethod = "event"

// Event is the params of an "event" notification.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
	Time time.Time   `json:"time"`
}

// hub fans events out to the WebSocket connections that subscribed.
type hub struct {
	mu      sync.Mutex
	clients map[*wsConnection]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*wsConnection]struct{})}
}

func (h *hub) subscribe(c *wsConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) unsubscribe(c *wsConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) publish(typ EventType, data interface{}) {
	h.mu.Lock()
	clients := make([]*wsConnection, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	event := Event{Type: typ, Data: data, Time: time.Now()}
	for _, c := range clients {
		if err := c.sendNotification(eventMethod, event); err != nil {
			utils.Verbose("Dropping event subscriber: %v", err)
			h.unsubscribe(c)
		}
	}
}

// closeAll closes subscribed connections, ending their read loops.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

const minRefreshInterval = time.Second

// refresher polls adb while auto_refresh is on and publishes the device
// list when it changes.
type refresher struct {
	rt   *commands.Runtime
	hub  *hub
	last string
}

func newRefresher(rt *commands.Runtime, h *hub) *refresher {
	return &refresher{rt: rt, hub: h}
}

func (f *refresher) interval() time.Duration {
	d := time.Duration(f.rt.Store.AppSettings().RefreshInterval) * time.Second
	if d < minRefreshInterval {
		return minRefreshInterval
	}
	return d
}

func (f *refresher) run(ctx context.Context) {
	timer := time.NewTimer(f.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if f.rt.Store.AppSettings().AutoRefresh {
				f.refresh(ctx)
			}
			timer.Reset(f.interval())
		}
	}
}

func (f *refresher) refresh(ctx context.Context) {
	resp, err := f.rt.ListDevices(ctx, false)
	if err != nil {
		utils.Verbose("Auto-refresh failed: %v", err)
		return
	}

	fp := fingerprint(resp)
	if fp == f.last {
		return
	}
	f.last = fp
	f.hub.publish(EventDevices, resp)
}

// fingerprint identifies the visible state of a device listing.
func fingerprint(resp *commands.DevicesResponse) string {
	lines := make([]string, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		line := d.ID + "|" + d.Status + "|" + d.Model + "|" + string(d.Kind)
		if d.Running {
			line += "|running"
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
