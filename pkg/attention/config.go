package attention

import "fmt"

// History window sizes, fixed by the landmark pipeline rather than
// tuned per deployment.
const (
	positionWindow      = 25 // eye/nose samples kept for variance
	earWindow           = 40 // recent EAR samples surfaced for status
	minStabilitySamples = 5  // below this the window reads as unstable
)

// Config holds the detection tuning for one detector instance.
type Config struct {
	// EARBlinkThreshold is the eye aspect ratio below which a frame
	// counts toward a closure run.
	EARBlinkThreshold float64

	// EAROpenThreshold is the eye aspect ratio above which the eyes
	// count as fully open again. Values between the two thresholds
	// keep the previous eye state.
	EAROpenThreshold float64

	// BlinkFrames separates a blink from sustained closure: closure
	// runs shorter than this report blinking, runs reaching it report
	// closed eyes.
	BlinkFrames int

	// StabilityThreshold is the combined positional variance, in
	// squared pixels, at or below which the gaze counts as stable.
	StabilityThreshold float64

	// ConfirmFrames is how many consecutive stable, eyes-open frames
	// promote the state to attentive.
	ConfirmFrames int

	// BreakFrames is how many consecutive failing frames demote the
	// state back to not attentive.
	BreakFrames int

	// FaceTimeoutFrames is how many consecutive no-face frames force
	// the state to not attentive, about one second at the default
	// 30 FPS capture rate.
	FaceTimeoutFrames int
}

// DefaultConfig returns the tuning the pipeline ships with, calibrated
// for a 640x480 webcam stream at 30 FPS.
func DefaultConfig() Config {
	return Config{
		EARBlinkThreshold:  0.18,
		EAROpenThreshold:   0.25,
		BlinkFrames:        4,
		StabilityThreshold: 35,
		ConfirmFrames:      12,
		BreakFrames:        15,
		FaceTimeoutFrames:  30,
	}
}

// RelaxedConfig favours uninterrupted playback: attention engages
// faster and survives more head movement before breaking.
func RelaxedConfig() Config {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 60
	cfg.ConfirmFrames = 8
	cfg.BreakFrames = 25
	cfg.FaceTimeoutFrames = 60
	return cfg
}

// StrictConfig pauses at the first sign of looking away, for viewing
// that must not run unattended.
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.StabilityThreshold = 20
	cfg.ConfirmFrames = 20
	cfg.BreakFrames = 8
	cfg.FaceTimeoutFrames = 15
	return cfg
}

// Validate rejects tunings the state machines cannot run with. It is
// called once at configuration time so per-frame code never re-checks.
func (c Config) Validate() error {
	if c.EARBlinkThreshold <= 0 {
		return fmt.Errorf("attention: EARBlinkThreshold must be positive, got %v", c.EARBlinkThreshold)
	}
	if c.EAROpenThreshold <= 0 {
		return fmt.Errorf("attention: EAROpenThreshold must be positive, got %v", c.EAROpenThreshold)
	}
	if c.EAROpenThreshold < c.EARBlinkThreshold {
		return fmt.Errorf("attention: EAROpenThreshold %v below EARBlinkThreshold %v", c.EAROpenThreshold, c.EARBlinkThreshold)
	}
	if c.BlinkFrames <= 0 {
		return fmt.Errorf("attention: BlinkFrames must be positive, got %d", c.BlinkFrames)
	}
	if c.StabilityThreshold <= 0 {
		return fmt.Errorf("attention: StabilityThreshold must be positive, got %v", c.StabilityThreshold)
	}
	if c.ConfirmFrames <= 0 {
		return fmt.Errorf("attention: ConfirmFrames must be positive, got %d", c.ConfirmFrames)
	}
	if c.BreakFrames <= 0 {
		return fmt.Errorf("attention: BreakFrames must be positive, got %d", c.BreakFrames)
	}
	if c.FaceTimeoutFrames <= 0 {
		return fmt.Errorf("attention: FaceTimeoutFrames must be positive, got %d", c.FaceTimeoutFrames)
	}
	return nil
}
