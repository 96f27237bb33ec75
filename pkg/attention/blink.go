package attention

// EyeState is the discrete eye classification surfaced per frame.
type EyeState int

const (
	// EyeOpen covers open eyes, the hysteresis band and the recovery
	// tail after a closure.
	EyeOpen EyeState = iota
	// EyeClosed means a closure that has lasted BlinkFrames or more.
	EyeClosed
	// EyeBlinking means a closure still short enough to be a blink.
	EyeBlinking
)

func (s EyeState) String() string {
	switch s {
	case EyeOpen:
		return "open"
	case EyeClosed:
		return "closed"
	case EyeBlinking:
		return "blinking"
	default:
		return "unknown"
	}
}

// Internal phases of the closure cycle.
type eyePhase int

const (
	phaseOpen eyePhase = iota
	phaseClosing
	phaseClosed
	phaseOpening
)

// Classifier turns the per-frame average EAR into a debounced eye
// state. A closure run shorter than BlinkFrames surfaces as blinking;
// a run reaching it surfaces as closed until the eyes reopen past
// EAROpenThreshold. EAR values between the two thresholds never move
// the phase on their own.
type Classifier struct {
	blinkEAR    float64
	openEAR     float64
	blinkFrames int

	phase       eyePhase
	blinkCount  int
	closedCount int
	inBlink     bool

	history *floatRing
}

// NewClassifier builds a classifier from an already validated config.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		blinkEAR:    cfg.EARBlinkThreshold,
		openEAR:     cfg.EAROpenThreshold,
		blinkFrames: cfg.BlinkFrames,
		history:     newFloatRing(earWindow),
	}
}

// Update advances the closure cycle with one EAR sample and returns
// the surfaced state.
func (c *Classifier) Update(avgEAR float64) EyeState {
	c.history.Push(avgEAR)

	switch c.phase {
	case phaseOpen:
		if avgEAR < c.blinkEAR {
			c.phase = phaseClosing
			c.blinkCount = 1
			c.closedCount = 0
			c.inBlink = true
			c.settleClosed()
		}

	case phaseClosing:
		if avgEAR < c.blinkEAR {
			c.blinkCount++
			c.settleClosed()
		} else {
			c.phase = phaseOpen
			c.blinkCount = 0
			c.inBlink = false
		}

	case phaseClosed:
		if avgEAR >= c.openEAR {
			c.phase = phaseOpening
			c.blinkCount = 0
		} else {
			c.closedCount++
		}

	case phaseOpening:
		if avgEAR >= c.openEAR {
			c.blinkCount--
			if c.blinkCount <= 0 {
				c.phase = phaseOpen
				c.blinkCount = 0
				c.closedCount = 0
				c.inBlink = false
			}
		} else {
			c.phase = phaseClosed
		}
	}

	return c.state()
}

// settleClosed promotes closing to closed once the run is long enough.
func (c *Classifier) settleClosed() {
	if c.phase == phaseClosing && c.blinkCount >= c.blinkFrames {
		c.phase = phaseClosed
		c.closedCount = c.blinkCount
	}
}

func (c *Classifier) state() EyeState {
	switch c.phase {
	case phaseClosed:
		if c.closedCount < c.blinkFrames {
			return EyeBlinking
		}
		return EyeClosed
	case phaseClosing:
		if c.inBlink {
			return EyeBlinking
		}
		return EyeOpen
	default:
		return EyeOpen
	}
}

// History returns the recent EAR samples oldest first, up to the
// fixed window size.
func (c *Classifier) History() []float64 {
	return c.history.Values()
}

// Reset returns the classifier to eyes-open with an empty history.
func (c *Classifier) Reset() {
	c.phase = phaseOpen
	c.blinkCount = 0
	c.closedCount = 0
	c.inBlink = false
	c.history.Reset()
}
