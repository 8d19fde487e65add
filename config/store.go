package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mirrordroid/mirrordroid/utils"
)

const (
	DefaultFileName = "config.json"
	EnvConfigPath   = "MIRRORDROID_CONFIG"
)

// DefaultPath returns $MIRRORDROID_CONFIG, or config.json next to the executable.
func DefaultPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	exe, err := os.Executable()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(filepath.Dir(exe), DefaultFileName)
}

// Store is the settings file held in memory. Every mutation is written
// to disk before it returns.
type Store struct {
	path string

	mu   sync.RWMutex
	file File
	// saved is the content last written or read, so Reload can skip our own writes.
	saved []byte

	listenersMu  sync.Mutex
	listeners    map[int]func()
	nextListener int
}

// NewStore loads path. A missing or unreadable file yields defaults.
func NewStore(path string) *Store {
	s := &Store{path: path, file: DefaultFile()}
	if err := s.Load(); err != nil {
		utils.Warn("Error loading configuration from %s: %v, using default settings", path, err)
	}
	return s
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the file; on any error the store is reset to defaults.
// A missing file is not an error.
func (s *Store) Load() error {
	s.mu.Lock()
	data, file, err := readFile(s.path)
	if err != nil {
		s.file = DefaultFile()
		s.saved = nil
	} else {
		s.file = file
		s.saved = data
	}
	s.mu.Unlock()

	if errors.Is(err, os.ErrNotExist) {
		utils.Verbose("Configuration %s not found, using defaults", s.path)
		return nil
	}
	if err == nil {
		utils.Verbose("Configuration loaded from %s", s.path)
	}
	return err
}

// Reload re-reads the file and keeps the current state when it cannot be parsed.
// The lock is held from read to swap so a concurrent mutation is never reverted.
func (s *Store) Reload() error {
	s.mu.Lock()
	data, file, err := readFile(s.path)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if bytes.Equal(data, s.saved) {
		s.mu.Unlock()
		return nil
	}

	before, _ := json.Marshal(s.file)
	after, _ := json.Marshal(file)
	s.file = file
	s.saved = data
	s.mu.Unlock()

	if !bytes.Equal(before, after) {
		s.notify()
	}
	return nil
}

func readFile(path string) ([]byte, File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, File{}, err
	}

	file := DefaultFile()
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, File{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if file.Devices == nil {
		file.Devices = []DeviceEntry{}
	}
	return data, file, nil
}

// Save writes the current state to disk atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	data = append(data, '\n')

	if err := utils.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	s.saved = data
	utils.Verbose("Configuration saved to %s", s.path)
	return nil
}

// update applies fn under the write lock and persists the result. When
// fn or the save fails the previous state is restored.
func (s *Store) update(fn func(f *File) error) error {
	s.mu.Lock()
	previous := s.file.clone()
	if err := fn(&s.file); err != nil {
		s.file = previous
		s.mu.Unlock()
		return err
	}
	if err := s.saveLocked(); err != nil {
		s.file = previous
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// OnChange registers fn to run after every mutation or reload and returns
// a function that removes it.
func (s *Store) OnChange(fn func()) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]func())
	}
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify() {
	s.listenersMu.Lock()
	listeners := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Snapshot returns a deep copy of the whole file.
func (s *Store) Snapshot() File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.clone()
}

func (s *Store) AppSettings() AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.AppSettings
}

func (s *Store) SetAppSettings(settings AppSettings) error {
	return s.update(func(f *File) error {
		f.AppSettings = settings
		return nil
	})
}

// SetAppSetting sets a single app_settings key. value must have the JSON type of the key.
func (s *Store) SetAppSetting(key string, value any) error {
	return s.update(func(f *File) error {
		current, err := json.Marshal(f.AppSettings)
		if err != nil {
			return err
		}
		fields := map[string]any{}
		if err := json.Unmarshal(current, &fields); err != nil {
			return err
		}
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("unknown app setting: %s", key)
		}
		fields[key] = value

		updated, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		next := f.AppSettings
		if err := json.Unmarshal(updated, &next); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		f.AppSettings = next
		return nil
	})
}

func (s *Store) Devices() []DeviceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.clone().Devices
}

// AddDevice inserts the entry or replaces the one with the same id.
func (s *Store) AddDevice(entry DeviceEntry) error {
	if entry.ID == "" {
		return errors.New("device id is empty")
	}
	return s.update(func(f *File) error {
		if d := f.findDevice(entry.ID); d != nil {
			utils.Verbose("Updating existing device: %s", entry.ID)
			*d = entry.clone()
			return nil
		}
		utils.Verbose("Adding new device: %s", entry.ID)
		f.Devices = append(f.Devices, entry.clone())
		return nil
	})
}

// RemoveDevice forgets a device and its settings. It reports whether an entry existed.
func (s *Store) RemoveDevice(deviceID string) (bool, error) {
	removed := false
	err := s.update(func(f *File) error {
		kept := f.Devices[:0]
		for _, d := range f.Devices {
			if d.ID == deviceID {
				removed = true
				continue
			}
			kept = append(kept, d)
		}
		f.Devices = kept
		return nil
	})
	return removed, err
}

func (f *File) findDevice(deviceID string) *DeviceEntry {
	for i := range f.Devices {
		if f.Devices[i].ID == deviceID {
			return &f.Devices[i]
		}
	}
	return nil
}

// deviceEntry returns the entry for deviceID, appending a new one when needed.
func (f *File) deviceEntry(deviceID string) *DeviceEntry {
	if d := f.findDevice(deviceID); d != nil {
		return d
	}
	f.Devices = append(f.Devices, DeviceEntry{ID: deviceID})
	return &f.Devices[len(f.Devices)-1]
}

// DeviceSettings returns the device's own settings, or the defaults.
func (s *Store) DeviceSettings(deviceID string) Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.file.findDevice(deviceID); d != nil && d.ScrcpySettings != nil {
		return *d.ScrcpySettings
	}
	return s.file.ScrcpyDefaults
}

// HasDeviceSettings reports whether the device overrides the defaults.
func (s *Store) HasDeviceSettings(deviceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.file.findDevice(deviceID)
	return d != nil && d.ScrcpySettings != nil
}

func (s *Store) SetDeviceSettings(deviceID string, settings Settings) error {
	return s.update(func(f *File) error {
		f.deviceEntry(deviceID).ScrcpySettings = &settings
		return nil
	})
}

// ResetDeviceSettings drops the per-device overrides so the defaults apply again.
func (s *Store) ResetDeviceSettings(deviceID string) error {
	return s.update(func(f *File) error {
		if d := f.findDevice(deviceID); d != nil {
			d.ScrcpySettings = nil
		}
		return nil
	})
}

func (s *Store) DefaultSettings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.ScrcpyDefaults
}

func (s *Store) SetDefaultSettings(settings Settings) error {
	return s.update(func(f *File) error {
		f.ScrcpyDefaults = settings
		return nil
	})
}

// CameraSettings returns the device's camera profile, or the default one.
func (s *Store) CameraSettings(deviceID string) CameraProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.file.findDevice(deviceID); d != nil && d.CameraSettings != nil {
		return *d.CameraSettings
	}
	return DefaultCameraProfile()
}

func (s *Store) SetCameraSettings(deviceID string, profile CameraProfile) error {
	return s.update(func(f *File) error {
		f.deviceEntry(deviceID).CameraSettings = &profile
		return nil
	})
}
