package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mirrordroid/mirrordroid/cli"
	"github.com/mirrordroid/mirrordroid/utils"
)

func main() {
	// cleanup hooks are registered once the runtime is built
	hook := utils.NewShutdownHook()
	cli.SetShutdownHook(hook)

	// setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// run command in goroutine
	done := make(chan error, 1)
	go func() {
		done <- cli.Execute()
	}()

	// wait for command completion or signal
	select {
	case <-sigChan:
		// stop scrcpy children and flush settings
		if err := hook.Shutdown(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(0)
	case err := <-done:
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
