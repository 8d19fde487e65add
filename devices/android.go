package devices

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	StatusDevice       = "device"
	StatusOffline      = "offline"
	StatusUnauthorized = "unauthorized"

	ConnectionWired    = "wired"
	ConnectionWireless = "wireless"

	DefaultPort = 5555
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidPort    = errors.New("invalid port")
)

// Device is one entry of `adb devices -l`, enriched with properties.
type Device struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	ConnectionType string `json:"connection_type"`
	Model          string `json:"model"`
	Name           string `json:"name"`
	Product        string `json:"product,omitempty"`
	TransportID    string `json:"transport_id,omitempty"`
	Version        string `json:"version,omitempty"`
}

// Type is "emulator" for emulator serials and AVDs, "real" otherwise.
func (d Device) Type() string {
	if strings.HasPrefix(d.ID, "emulator-") || d.Version != "" {
		return "emulator"
	}
	return "real"
}

func (d Device) Ready() bool {
	return d.Status == StatusDevice
}

// ConnectionTypeOf returns wireless for ip:port serials.
func ConnectionTypeOf(deviceID string) string {
	if strings.Contains(deviceID, ":") {
		return ConnectionWireless
	}
	return ConnectionWired
}

// ParseDevicesOutput parses `adb devices [-l]` output. The header line is skipped.
func ParseDevicesOutput(output string) []Device {
	devices := []Device{}

	lines := strings.Split(output, "\n")
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "*") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		d := Device{
			ID:             parts[0],
			Status:         parts[1],
			ConnectionType: ConnectionTypeOf(parts[0]),
		}

		for _, field := range parts[2:] {
			key, value, ok := strings.Cut(field, ":")
			if !ok {
				continue
			}
			switch key {
			case "product":
				d.Product = value
			case "model":
				d.Model = strings.ReplaceAll(value, "_", " ")
			case "device":
				d.Name = value
			case "transport_id":
				d.TransportID = value
			}
		}

		devices = append(devices, d)
	}

	return devices
}

// ParseAddress splits "ip[:port]" and validates the port.
func ParseAddress(input string) (string, int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", 0, fmt.Errorf("%w: address is empty", ErrInvalidAddress)
	}

	parts := strings.Split(input, ":")
	switch len(parts) {
	case 1:
		return parts[0], DefaultPort, nil
	case 2:
		ip := strings.TrimSpace(parts[0])
		if ip == "" {
			return "", 0, fmt.Errorf("%w: ip is empty", ErrInvalidAddress)
		}
		port, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || port < 1 || port > 65535 {
			return "", 0, fmt.Errorf("%w: %q must be between 1 and 65535", ErrInvalidPort, parts[1])
		}
		return ip, port, nil
	default:
		return "", 0, fmt.Errorf("%w: expected ip[:port], got %q", ErrInvalidAddress, input)
	}
}

// CountReady returns how many devices are authorized and how many are
// authorized or waiting for authorization.
func CountReady(devices []Device) (authorized, total int) {
	for _, d := range devices {
		switch d.Status {
		case StatusDevice:
			authorized++
			total++
		case StatusUnauthorized:
			total++
		}
	}
	return authorized, total
}
