// Package attention turns a stream of face landmark frames into a
// debounced watching / not-watching signal for playback control.
//
// Per frame the pipeline computes eye aspect ratios from the canonical
// mesh indices, classifies blinks and sustained closure over the
// averaged EAR, estimates gaze stability from positional variance, and
// fuses both through a confirm/break state machine. Everything is
// in-memory and allocation-light; a Detector belongs to exactly one
// caller context at a time and never blocks.
package attention

import (
	"time"

	"github.com/attentix/attentix/pkg/facemesh"
)

// Command is the playback instruction derived from the pipeline.
type Command int

const (
	CommandNone Command = iota
	CommandPlay
	CommandPause
)

func (c Command) String() string {
	switch c {
	case CommandPlay:
		return "play"
	case CommandPause:
		return "pause"
	default:
		return "none"
	}
}

// Result is everything the pipeline knows about one frame.
type Result struct {
	Timestamp    time.Time
	FaceDetected bool

	// Eye geometry, meaningful only when FaceDetected.
	LeftEAR    float64
	RightEAR   float64
	AvgEAR     float64
	EyeCenter  facemesh.Point
	NoseCenter facemesh.Point

	// EyeState is the blink classifier verdict, meaningful only when
	// FaceDetected.
	EyeState EyeState

	// Variance is the combined positional variance. It reads 1000
	// while the stability window is underfilled or the face absent.
	Variance float64
	Stable   bool

	// State is the attention signal after this frame; Changed marks
	// the edge frames.
	State   State
	Changed bool

	// Command is CommandPlay or CommandPause on frames where the
	// derived playback instruction changes, CommandNone otherwise.
	Command Command
}

// Detector owns the full pipeline for a single face: blink
// classifier, stability estimator and attention machine. Drive it
// from one caller context at a time, strictly in frame order.
type Detector struct {
	cfg        Config
	classifier *Classifier
	stability  *Stability
	machine    *Machine

	lastCommand Command
}

// NewDetector validates cfg and builds an idle detector in
// NotAttentive.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		cfg:        cfg,
		classifier: NewClassifier(cfg),
		stability:  NewStability(cfg),
		machine:    NewMachine(cfg),
	}, nil
}

// Process advances the pipeline with one observation. A nil frame or
// one failing mesh validation counts as no-face: the classifier and
// stability window reset, the machine advances its absence counter,
// and once the absence outlasts the timeout a pause instruction is
// derived. Playback instructions are edge-triggered; consecutive
// identical instructions collapse into the first.
func (d *Detector) Process(f *facemesh.Frame) Result {
	res := Result{Variance: unstableVariance}
	if f != nil {
		res.Timestamp = f.Timestamp
	}

	m, err := Metrics(f)
	if err != nil {
		d.classifier.Reset()
		d.stability.Reset()
		res.State, res.Changed = d.machine.Step(EyeOpen, false, false)
		if d.machine.FaceTimedOut() {
			res.Command = d.edge(CommandPause)
		}
		return res
	}

	res.FaceDetected = true
	res.LeftEAR = m.LeftEAR
	res.RightEAR = m.RightEAR
	res.AvgEAR = m.AvgEAR
	res.EyeCenter = m.EyeCenter
	res.NoseCenter = m.NoseCenter

	res.EyeState = d.classifier.Update(m.AvgEAR)
	res.Variance, res.Stable = d.stability.Observe(m.EyeCenter, m.NoseCenter)
	res.State, res.Changed = d.machine.Step(res.EyeState, res.Stable, true)

	want := CommandPlay
	if res.EyeState == EyeClosed || res.State != Attentive {
		want = CommandPause
	}
	res.Command = d.edge(want)
	return res
}

func (d *Detector) edge(want Command) Command {
	if want == d.lastCommand {
		return CommandNone
	}
	d.lastCommand = want
	return want
}

// Reset returns the whole pipeline to its initial state, equivalent
// to a freshly built detector.
func (d *Detector) Reset() {
	d.classifier.Reset()
	d.stability.Reset()
	d.machine.Reset()
	d.lastCommand = CommandNone
}

// Config returns the tuning the detector runs with.
func (d *Detector) Config() Config { return d.cfg }

// State returns the current attention state without advancing.
func (d *Detector) State() State { return d.machine.State() }

// Counters returns the machine's debounce counters for status
// surfaces.
func (d *Detector) Counters() (confirm, brk, noFace int) {
	return d.machine.Counters()
}

// FaceTimedOut reports whether the face has been absent long enough
// to force NotAttentive.
func (d *Detector) FaceTimedOut() bool { return d.machine.FaceTimedOut() }

// EARHistory returns the recent averaged EAR samples oldest first.
func (d *Detector) EARHistory() []float64 {
	return d.classifier.History()
}
