package pairing

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	serviceNamePrefix = "ADB_WIFI_"
	randomLength      = 8
	alphabet          = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// QRSession holds the credentials encoded in a wireless-debugging QR code.
type QRSession struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func NewQRSession() (*QRSession, error) {
	name, err := randomString(randomLength)
	if err != nil {
		return nil, err
	}
	password, err := randomString(randomLength)
	if err != nil {
		return nil, err
	}

	return &QRSession{
		ID:       uuid.New().String(),
		Name:     serviceNamePrefix + name,
		Password: password,
	}, nil
}

func randomString(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random string: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// Payload is the text Android's "Pair device with QR code" scanner expects.
func (s *QRSession) Payload() string {
	return fmt.Sprintf("WIFI:T:ADB;S:%s;P:%s;;", s.Name, s.Password)
}

// Terminal renders the QR code with half-block characters.
func (s *QRSession) Terminal() (string, error) {
	code, err := qrcode.New(s.Payload(), qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}
	return code.ToSmallString(false), nil
}

// PNG encodes the QR code as a size x size image.
func (s *QRSession) PNG(size int) ([]byte, error) {
	png, err := qrcode.Encode(s.Payload(), qrcode.Low, size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return png, nil
}

func (s *QRSession) WritePNG(path string, size int) error {
	if err := qrcode.WriteFile(s.Payload(), qrcode.Low, size, path); err != nil {
		return fmt.Errorf("failed to write QR code to %s: %w", path, err)
	}
	return nil
}
