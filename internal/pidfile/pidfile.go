// Package pidfile records the running server so other commands can find
// it. The lockfile holds "addr|pid".
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/studyroom/internal/constants"
)

var (
	ErrNotRunning     = errors.New("studyroom server is not running")
	ErrAlreadyRunning = errors.New("studyroom server is already running")

	findProcessFunc = ps.FindProcess
	getpidFunc      = os.Getpid
)

type Info struct {
	Addr string
	PID  int
}

// Path returns the lockfile location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, constants.ServerLockfileName)
}

// Write records the current process as the server listening on addr.
// A lockfile left by a dead process is replaced.
func Write(path, addr string) error {
	if info, err := Check(path); err == nil {
		return fmt.Errorf("%w (pid %d on %s)", ErrAlreadyRunning, info.PID, info.Addr)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create lockfile directory: %w", err)
	}
	content := fmt.Sprintf("%s|%d", addr, getpidFunc())
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	return nil
}

// Read parses the lockfile without checking the process.
func Read(path string) (Info, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, ErrNotRunning
		}
		return Info{}, fmt.Errorf("failed to read lockfile: %w", err)
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 2 {
		return Info{}, errors.New("lockfile is malformed")
	}
	addr := strings.TrimSpace(parts[0])
	if addr == "" {
		return Info{}, errors.New("address in lockfile is empty")
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil || pid < 1 {
		return Info{}, errors.New("invalid process ID in lockfile")
	}
	return Info{Addr: addr, PID: pid}, nil
}

// Check reads the lockfile and verifies the process is a live studyroom.
func Check(path string) (Info, error) {
	info, err := Read(path)
	if err != nil {
		return Info{}, err
	}

	process, err := findProcessFunc(info.PID)
	if err != nil || process == nil {
		return Info{}, ErrNotRunning
	}
	if !strings.HasPrefix(process.Executable(), constants.AppName) {
		return Info{}, fmt.Errorf("%w: process %d is %s", ErrNotRunning, info.PID, process.Executable())
	}
	return info, nil
}

// Remove deletes the lockfile if it belongs to this process.
func Remove(path string) error {
	info, err := Read(path)
	if err != nil {
		if errors.Is(err, ErrNotRunning) {
			return nil
		}
		return err
	}
	if info.PID != getpidFunc() {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}
