package goals

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	pauseText = "Paused from keywork\n"
	stopText  = "Stopped from keywork\n"
)

// Pause asks the orchestrator to hold the goal at its next checkpoint.
func Pause(dir string) error {
	return writeMarker(dir, PauseMarker, pauseText)
}

// Resume removes the pause marker. It reports false when the goal was not
// paused.
func Resume(dir string) (bool, error) {
	err := os.Remove(filepath.Join(dir, PauseMarker))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("goals: resume %s: %w", filepath.Base(dir), err)
	}
	return true, nil
}

// Stop asks the orchestrator to end work on the goal.
func Stop(dir string) error {
	return writeMarker(dir, StopMarker, stopText)
}

func IsPaused(dir string) bool  { return HasMarker(dir, PauseMarker) }
func IsStopped(dir string) bool { return HasMarker(dir, StopMarker) }

// HasMarker reports whether the named marker file exists in dir.
func HasMarker(dir, name string) bool {
	return exists(filepath.Join(dir, name))
}

func writeMarker(dir, name, text string) error {
	if !isDir(dir) {
		return fmt.Errorf("goals: %s: %w", dir, fs.ErrNotExist)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
		return fmt.Errorf("goals: write %s marker: %w", name, err)
	}
	return nil
}
