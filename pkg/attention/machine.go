package attention

// State is the binary attention signal driving playback.
type State int

const (
	// NotAttentive is the initial state: eyes closed, gaze wandering
	// or no face in front of the camera.
	NotAttentive State = iota
	// Attentive means the viewer has held a stable, eyes-open gaze
	// long enough to confirm they are watching.
	Attentive
)

func (s State) String() string {
	if s == Attentive {
		return "attentive"
	}
	return "not_attentive"
}

// Machine fuses the eye state and gaze stability into the attention
// signal, debounced in both directions: engaging needs ConfirmFrames
// consecutive qualifying frames, breaking needs BreakFrames
// consecutive disqualifying ones, and a single frame of the opposite
// kind resets the pending counter. A blink counts as eyes open. At
// most one transition happens per frame.
type Machine struct {
	confirmFrames int
	breakFrames   int
	faceTimeout   int

	state        State
	confirmCount int
	breakCount   int
	noFaceCount  int
	timedOut     bool
}

// NewMachine builds a machine from an already validated config.
func NewMachine(cfg Config) *Machine {
	return &Machine{
		confirmFrames: cfg.ConfirmFrames,
		breakFrames:   cfg.BreakFrames,
		faceTimeout:   cfg.FaceTimeoutFrames,
	}
}

// Step advances the machine one frame and reports the state plus
// whether it changed on this frame.
//
// No-face frames never touch the gaze counters; they only advance the
// absence counter, and once it reaches the timeout the state is
// forced to NotAttentive with every counter cleared.
func (m *Machine) Step(eyes EyeState, stable, faceDetected bool) (State, bool) {
	prev := m.state

	if !faceDetected {
		m.noFaceCount++
		if m.noFaceCount >= m.faceTimeout {
			m.state = NotAttentive
			m.confirmCount = 0
			m.breakCount = 0
			m.noFaceCount = 0
			m.timedOut = true
		}
		return m.state, m.state != prev
	}

	m.noFaceCount = 0
	m.timedOut = false

	gazing := eyes != EyeClosed && stable

	switch m.state {
	case NotAttentive:
		if gazing {
			m.confirmCount++
			if m.confirmCount >= m.confirmFrames {
				m.state = Attentive
				m.confirmCount = 0
				m.breakCount = 0
			}
		} else {
			m.confirmCount = 0
		}

	case Attentive:
		if gazing {
			m.breakCount = 0
		} else {
			m.breakCount++
			if m.breakCount >= m.breakFrames {
				m.state = NotAttentive
				m.confirmCount = 0
				m.breakCount = 0
			}
		}
	}

	return m.state, m.state != prev
}

// State returns the current attention state without advancing.
func (m *Machine) State() State { return m.state }

// FaceTimedOut reports whether the current absence run has already
// hit the timeout. It clears on the next frame with a face.
func (m *Machine) FaceTimedOut() bool { return m.timedOut }

// Counters returns the debounce counters for status surfaces.
func (m *Machine) Counters() (confirm, brk, noFace int) {
	return m.confirmCount, m.breakCount, m.noFaceCount
}

// Reset returns the machine to NotAttentive with zeroed counters.
func (m *Machine) Reset() {
	m.state = NotAttentive
	m.confirmCount = 0
	m.breakCount = 0
	m.noFaceCount = 0
	m.timedOut = false
}
