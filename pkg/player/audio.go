package player

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/attentix/attentix/internal/log"
)

// audioProc runs ffplay as an audio-only sidecar. Video timing lives
// in the Timeline; ffplay just plays the soundtrack from the position
// playback resumed at, and dies on pause.
type audioProc struct {
	mu  sync.Mutex
	cmd *exec.Cmd
}

// start launches ffplay at the given position, replacing any running
// instance.
func (a *audioProc) start(path string, at time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()

	cmd := exec.Command("ffplay",
		"-nodisp",
		"-autoexit",
		"-loglevel", "quiet",
		"-vn",
		"-ss", fmt.Sprintf("%.3f", at.Seconds()),
		path,
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("player: start ffplay: %w", err)
	}
	a.cmd = cmd
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug("ffplay exited", "error", err)
		}
	}()
	return nil
}

// stop kills the sidecar if one is running.
func (a *audioProc) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

func (a *audioProc) stopLocked() {
	if a.cmd != nil && a.cmd.Process != nil {
		a.cmd.Process.Kill()
	}
	a.cmd = nil
}
