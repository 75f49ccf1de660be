//go:build windows

package util

import "os"

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// GracefulSignal attempts graceful process termination.
// Windows has no SIGINT delivery for other processes; the engine is torn
// down by closing its stdin and, if needed, killing it.
func GracefulSignal(p *os.Process) error {
	return nil
}
