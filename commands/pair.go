package commands

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mirrordroid/mirrordroid/i18n"
	"github.com/mirrordroid/mirrordroid/pairing"
	"github.com/mirrordroid/mirrordroid/utils"
)

const (
	connectDiscoveryTimeout = 5 * time.Second
	qrImageSize             = 256
	finishedSessionTTL      = 5 * time.Minute
)

// Pairer returns a pairer over the runtime's adb client and mDNS browser.
func (r *Runtime) Pairer() *pairing.Pairer {
	return pairing.NewPairer(r.Adb, r.Browser)
}

type PairCodeRequest struct {
	// Address is the ip:port shown in the "Pair device with pairing code" dialog.
	Address string `json:"address"`
	Code    string `json:"code"`
	// Connect is the ip:port to connect to after pairing. When empty the
	// device's connect service is looked up over mDNS.
	Connect string `json:"connect,omitempty"`
}

// PairCodeCommand pairs with `adb pair` and then connects to the device.
func PairCodeCommand(ctx context.Context, req PairCodeRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	hostPort, err := pairing.PairWithCode(ctx, r.Adb, req.Address, req.Code)
	if err != nil {
		return NewErrorResponse(errors.New(r.Tr("pairing.failed", i18n.Args{"error": err})))
	}

	resp := map[string]interface{}{
		"message": r.Tr("pairing.paired", i18n.Args{"address": hostPort}),
		"paired":  hostPort,
	}

	target := req.Connect
	if target == "" {
		host, _, _ := net.SplitHostPort(hostPort)
		target = r.findConnectService(ctx, host)
	}
	if target == "" {
		utils.Verbose("No connect service found for %s, device may connect on its own", hostPort)
		return NewSuccessResponse(resp)
	}

	address, err := r.Connect(ctx, target)
	if err != nil {
		resp["connectError"] = err.Error()
		return NewSuccessResponse(resp)
	}

	resp["deviceId"] = address
	resp["message"] = r.Tr("messages.connected", i18n.Args{"address": address})
	return NewSuccessResponse(resp)
}

// findConnectService returns the address of the wireless-debugging service advertised by host.
func (r *Runtime) findConnectService(ctx context.Context, host string) string {
	if r.Browser == nil {
		return ""
	}

	services, err := pairing.Discover(ctx, r.Browser, pairing.ConnectService, connectDiscoveryTimeout)
	if err != nil {
		utils.Verbose("Connect service discovery failed: %v", err)
		return ""
	}

	for _, s := range services {
		for _, addr := range s.Addresses {
			if addr == host {
				return net.JoinHostPort(addr, strconv.Itoa(s.Port))
			}
		}
	}
	return ""
}

type qrEntry struct {
	session  *pairing.QRSession
	cancel   context.CancelFunc
	status   pairing.Status
	done     bool
	err      error
	finished time.Time
}

// QRRegistry tracks QR pairing sessions started through the API. Each
// session runs until the device connects, the timeout expires or it is canceled.
type QRRegistry struct {
	rt *Runtime

	mu           sync.Mutex
	sessions     map[string]*qrEntry
	observers    map[int]func(pairing.Status)
	nextObserver int
}

func NewQRRegistry(rt *Runtime) *QRRegistry {
	return &QRRegistry{
		rt:        rt,
		sessions:  make(map[string]*qrEntry),
		observers: make(map[int]func(pairing.Status)),
	}
}

// OnStatus registers fn to receive every status of every session and
// returns a function that removes it.
func (q *QRRegistry) OnStatus(fn func(pairing.Status)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextObserver
	q.nextObserver++
	q.observers[id] = fn

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.observers, id)
	}
}

func (q *QRRegistry) record(s pairing.Status) {
	q.mu.Lock()
	if e, ok := q.sessions[s.SessionID]; ok {
		e.status = s
	}
	observers := make([]func(pairing.Status), 0, len(q.observers))
	for _, fn := range q.observers {
		observers = append(observers, fn)
	}
	q.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// prune drops sessions that finished a while ago.
func (q *QRRegistry) prune() {
	for id, e := range q.sessions {
		if e.done && time.Since(e.finished) > finishedSessionTTL {
			delete(q.sessions, id)
		}
	}
}

// Start creates a QR session and starts waiting for the device in the background.
func (q *QRRegistry) Start() (*pairing.QRSession, error) {
	session, err := pairing.NewQRSession()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.mu.Lock()
	q.prune()
	q.sessions[session.ID] = &qrEntry{
		session: session,
		cancel:  cancel,
		status:  pairing.Status{SessionID: session.ID, Type: pairing.StatusWaiting},
	}
	q.mu.Unlock()

	go func() {
		defer cancel()
		err := q.rt.Pairer().RunQR(ctx, session, q.record)

		q.mu.Lock()
		defer q.mu.Unlock()
		if e, ok := q.sessions[session.ID]; ok {
			e.done = true
			e.err = err
			e.finished = time.Now()
		}
	}()

	return session, nil
}

type QRStatus struct {
	Status pairing.Status `json:"status"`
	Done   bool           `json:"done"`
	Error  string         `json:"error,omitempty"`
}

func (q *QRRegistry) Status(sessionID string) (QRStatus, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.sessions[sessionID]
	if !ok {
		return QRStatus{}, false
	}
	status := QRStatus{Status: e.status, Done: e.done}
	if e.err != nil {
		status.Error = e.err.Error()
	}
	return status, true
}

// Cancel stops a running session. It reports whether the session exists.
func (q *QRRegistry) Cancel(sessionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.sessions[sessionID]
	if !ok {
		return false
	}
	e.cancel()
	return true
}

// CancelAll stops every running session.
func (q *QRRegistry) CancelAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.sessions {
		e.cancel()
	}
}

// PairQRStartCommand creates a QR pairing session. The response carries the
// QR code as terminal text and as a base64 PNG.
func PairQRStartCommand() *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	session, err := r.QR.Start()
	if err != nil {
		return NewErrorResponse(fmt.Errorf("failed to start QR pairing: %w", err))
	}

	text, err := session.Terminal()
	if err != nil {
		return NewErrorResponse(err)
	}
	png, err := session.PNG(qrImageSize)
	if err != nil {
		return NewErrorResponse(err)
	}

	return NewSuccessResponse(map[string]interface{}{
		"sessionId": session.ID,
		"name":      session.Name,
		"password":  session.Password,
		"payload":   session.Payload(),
		"qr":        text,
		"png":       base64.StdEncoding.EncodeToString(png),
		"message":   r.Tr("pairing.scan"),
	})
}

type PairQRRequest struct {
	SessionID string `json:"sessionId"`
}

func PairQRStatusCommand(req PairQRRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	status, ok := r.QR.Status(req.SessionID)
	if !ok {
		return NewErrorResponse(fmt.Errorf("pairing session not found: %s", req.SessionID))
	}
	return NewSuccessResponse(status)
}

func PairQRCancelCommand(req PairQRRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if !r.QR.Cancel(req.SessionID) {
		return NewErrorResponse(fmt.Errorf("pairing session not found: %s", req.SessionID))
	}
	return NewSuccessResponse(map[string]interface{}{
		"message": r.Tr("pairing.canceled"),
	})
}

// StatusMessage renders a pairing status in the current language.
func (r *Runtime) StatusMessage(s pairing.Status) string {
	switch s.Type {
	case pairing.StatusWaiting:
		return r.Tr("pairing.waiting", i18n.Args{"elapsed": s.Elapsed})
	case pairing.StatusServiceFound:
		return r.Tr("pairing.service_found", i18n.Args{"address": s.Address})
	case pairing.StatusPaired:
		return r.Tr("pairing.paired", i18n.Args{"address": s.Address})
	case pairing.StatusPairFailed:
		return r.Tr("pairing.failed", i18n.Args{"error": s.Message})
	case pairing.StatusUnauthorized:
		return r.Tr("pairing.unauthorized")
	case pairing.StatusConnected:
		return r.Tr("pairing.connected", i18n.Args{"count": s.Devices})
	case pairing.StatusTimeout:
		return r.Tr("pairing.timeout")
	case pairing.StatusCanceled:
		return r.Tr("pairing.canceled")
	}
	return string(s.Type)
}

type PairDiscoverRequest struct {
	// Service is "pairing" or "connect".
	Service string `json:"service"`
	Timeout int    `json:"timeout"`
}

// PairDiscoverCommand lists wireless-debugging services advertised on the local network.
func PairDiscoverCommand(ctx context.Context, req PairDiscoverRequest) *CommandResponse {
	r, err := current()
	if err != nil {
		return NewErrorResponse(err)
	}

	if r.Browser == nil {
		return NewErrorResponse(fmt.Errorf("mDNS discovery is not available"))
	}

	service := pairing.PairingService
	switch req.Service {
	case "", "pairing":
	case "connect":
		service = pairing.ConnectService
	default:
		return NewErrorResponse(fmt.Errorf("unknown service %q, expected pairing or connect", req.Service))
	}

	timeout := time.Duration(req.Timeout) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(r.Store.AppSettings().ScanTimeout) * time.Second
	}
	if timeout <= 0 {
		timeout = connectDiscoveryTimeout
	}

	services, err := pairing.Discover(ctx, r.Browser, service, timeout)
	if err != nil {
		return NewErrorResponse(fmt.Errorf("discovery failed: %w", err))
	}

	return NewSuccessResponse(map[string]interface{}{
		"service":  service,
		"services": services,
	})
}
