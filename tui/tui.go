// Package tui is the interactive device screen started by `mirrordroid ui`.
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/mirrordroid/mirrordroid/config"
	"github.com/mirrordroid/mirrordroid/utils"
)

// Run shows the device screen until the user quits or ctx is canceled.
// Running sessions are stopped and settings saved on exit.
func Run(ctx context.Context, rt *commands.Runtime) error {
	if rt == nil {
		return errors.New("runtime is not initialized")
	}

	events, unsubscribe := rt.Scrcpy.Subscribe()
	defer unsubscribe()

	watcher, err := config.NewWatcher(rt.Store)
	if err != nil {
		utils.Verbose("Settings file watcher unavailable: %v", err)
	} else if err := watcher.Start(ctx); err != nil {
		utils.Verbose("Failed to watch settings file: %v", err)
	} else {
		defer watcher.Stop()
	}

	program := tea.NewProgram(NewModel(rt, events), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()

	rt.Scrcpy.StopAll()
	if saveErr := rt.Store.Save(); saveErr != nil {
		utils.Warn("Failed to save settings: %v", saveErr)
	}

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
