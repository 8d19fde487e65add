package pairing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mirrordroid/mirrordroid/devices"
	"github.com/mirrordroid/mirrordroid/utils"
)

var (
	ErrTimeout     = errors.New("timed out waiting for the device to connect")
	ErrInvalidCode = errors.New("pairing code must be 6 digits")
)

const (
	defaultPollInterval = time.Second
	defaultTimeout      = 30 * time.Second
)

// Bridge is the part of the adb client used for pairing.
type Bridge interface {
	ListDevices(ctx context.Context) ([]devices.Device, error)
	Pair(ctx context.Context, hostPort, code string) error
}

// ValidateCode checks a "pair with code" code: exactly six digits.
func ValidateCode(code string) error {
	if len(code) != 6 {
		return ErrInvalidCode
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return ErrInvalidCode
		}
	}
	return nil
}

// PairWithCode validates the input and runs `adb pair host:port code`.
// It returns the host:port that was paired. The pairing port differs from
// the connect port, so address must carry it.
func PairWithCode(ctx context.Context, bridge Bridge, address, code string) (string, error) {
	if _, _, err := net.SplitHostPort(strings.TrimSpace(address)); err != nil {
		return "", fmt.Errorf("%w: pairing address %q needs the port shown on the device", devices.ErrInvalidPort, address)
	}
	ip, port, err := devices.ParseAddress(address)
	if err != nil {
		return "", err
	}
	if err := ValidateCode(code); err != nil {
		return "", err
	}

	hostPort := net.JoinHostPort(ip, strconv.Itoa(port))
	if err := bridge.Pair(ctx, hostPort, code); err != nil {
		return "", fmt.Errorf("pairing with %s failed: %w", hostPort, err)
	}
	return hostPort, nil
}

type StatusType string

const (
	StatusWaiting      StatusType = "waiting"
	StatusServiceFound StatusType = "service_found"
	StatusPaired       StatusType = "paired"
	StatusPairFailed   StatusType = "pair_failed"
	StatusUnauthorized StatusType = "unauthorized"
	StatusConnected    StatusType = "connected"
	StatusTimeout      StatusType = "timeout"
	StatusCanceled     StatusType = "canceled"
)

// Status is a progress update of a QR pairing session.
type Status struct {
	SessionID string     `json:"session_id"`
	Type      StatusType `json:"type"`
	Address   string     `json:"address,omitempty"`
	Devices   int        `json:"devices"`
	Elapsed   int        `json:"elapsed"`
	Message   string     `json:"message,omitempty"`
}

// Pairer drives QR-code pairing: it waits for the phone to advertise the
// session over mDNS, pairs with it and then watches the device list.
type Pairer struct {
	bridge  Bridge
	browser Browser

	PollInterval time.Duration
	Timeout      time.Duration
}

func NewPairer(bridge Bridge, browser Browser) *Pairer {
	return &Pairer{
		bridge:       bridge,
		browser:      browser,
		PollInterval: defaultPollInterval,
		Timeout:      defaultTimeout,
	}
}

func (p *Pairer) count(ctx context.Context) (authorized, total int, err error) {
	list, err := p.bridge.ListDevices(ctx)
	if err != nil {
		return 0, 0, err
	}
	authorized, total = devices.CountReady(list)
	return authorized, total, nil
}

// RunQR blocks until a new authorized device shows up, the timeout
// expires (ErrTimeout) or ctx is canceled.
func (p *Pairer) RunQR(ctx context.Context, session *QRSession, notify func(Status)) error {
	if notify == nil {
		notify = func(Status) {}
	}
	emit := func(s Status) {
		s.SessionID = session.ID
		notify(s)
	}

	_, baseline, err := p.count(ctx)
	if err != nil {
		utils.Verbose("Failed to count devices before pairing: %v", err)
		baseline = 0
	}

	browseCtx, stopBrowse := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		stopBrowse()
		wg.Wait()
	}()

	if p.browser != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.pairAdvertised(browseCtx, session, emit)
		}()
	}

	emit(Status{Type: StatusWaiting, Devices: baseline})

	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.Timeout)
	defer deadline.Stop()
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			emit(Status{Type: StatusCanceled})
			return ctx.Err()
		case <-deadline.C:
			emit(Status{Type: StatusTimeout, Elapsed: int(time.Since(started).Seconds())})
			return ErrTimeout
		case <-ticker.C:
			authorized, total, err := p.count(ctx)
			elapsed := int(time.Since(started).Seconds())
			if err != nil {
				emit(Status{Type: StatusWaiting, Elapsed: elapsed, Message: err.Error()})
				continue
			}
			if total > baseline {
				if authorized > 0 {
					emit(Status{Type: StatusConnected, Devices: total, Elapsed: elapsed})
					return nil
				}
				emit(Status{Type: StatusUnauthorized, Devices: total, Elapsed: elapsed})
				continue
			}
			emit(Status{Type: StatusWaiting, Devices: total, Elapsed: elapsed})
		}
	}
}

// pairAdvertised pairs with the first pairing service named after the session.
func (p *Pairer) pairAdvertised(ctx context.Context, session *QRSession, emit func(Status)) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var once sync.Once
	err := p.browser.Browse(ctx, PairingService, func(s Service) {
		if s.Instance != session.Name {
			return
		}
		once.Do(func() {
			address := s.Address()
			emit(Status{Type: StatusServiceFound, Address: address})
			if err := p.bridge.Pair(ctx, address, session.Password); err != nil {
				emit(Status{Type: StatusPairFailed, Address: address, Message: err.Error()})
			} else {
				emit(Status{Type: StatusPaired, Address: address})
			}
			cancel()
		})
	})
	if err != nil {
		utils.Verbose("mDNS browsing failed: %v", err)
	}
}
