package attention

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/attentix/attentix/pkg/facemesh"
)

func TestNewDetectorRejectsInvalidConfig(t *testing.T) {
	if _, err := NewDetector(Config{}); err == nil {
		t.Fatal("NewDetector(Config{}) returned nil error")
	}
}

// Five frames fill the stability window, then ConfirmFrames qualifying
// frames engage the machine: with defaults the attentive edge lands on
// frame 16 of a steady, eyes-open gaze.
func TestSteadyGazeConfirmsAndPlays(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	at := facemesh.Point{X: 100, Y: 100}

	for i := 1; i <= 20; i++ {
		res := d.Process(meshFrame(openEAR, at))
		if !res.FaceDetected {
			t.Fatalf("frame %d: FaceDetected = false", i)
		}
		if res.EyeState != EyeOpen {
			t.Fatalf("frame %d: EyeState = %v, want open", i, res.EyeState)
		}

		switch {
		case i < minStabilitySamples:
			if res.Stable || res.Variance != unstableVariance {
				t.Errorf("frame %d: (variance=%v, stable=%v), want underfilled window", i, res.Variance, res.Stable)
			}
		default:
			if !res.Stable || res.Variance != 0 {
				t.Errorf("frame %d: (variance=%v, stable=%v), want (0, true)", i, res.Variance, res.Stable)
			}
		}

		switch {
		case i == 1:
			if res.Command != CommandPause {
				t.Errorf("frame 1: Command = %v, want pause", res.Command)
			}
		case i == 16:
			if res.State != Attentive || !res.Changed {
				t.Errorf("frame 16: (%v, changed=%v), want (attentive, true)", res.State, res.Changed)
			}
			if res.Command != CommandPlay {
				t.Errorf("frame 16: Command = %v, want play", res.Command)
			}
		case i < 16:
			if res.State != NotAttentive || res.Command != CommandNone {
				t.Errorf("frame %d: (%v, command=%v), want (not_attentive, none)", i, res.State, res.Command)
			}
		default:
			if res.State != Attentive || res.Changed || res.Command != CommandNone {
				t.Errorf("frame %d: (%v, changed=%v, command=%v), want steady attentive", i, res.State, res.Changed, res.Command)
			}
		}
	}
}

// Sustained closure pauses playback as soon as the classifier settles
// on closed (frame 4 of the closure with defaults) and breaks the
// attentive state BreakFrames frames later, on closure frame 18.
func TestSustainedClosurePausesThenBreaks(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	at := facemesh.Point{X: 100, Y: 100}
	for i := 0; i < 16; i++ {
		d.Process(meshFrame(openEAR, at))
	}
	if d.State() != Attentive {
		t.Fatal("detector not attentive after steady gaze")
	}

	for i := 1; i <= 18; i++ {
		res := d.Process(meshFrame(closedEAR, at))

		switch {
		case i < 4:
			if res.EyeState != EyeBlinking {
				t.Errorf("closure frame %d: EyeState = %v, want blinking", i, res.EyeState)
			}
			if res.Command != CommandNone {
				t.Errorf("closure frame %d: Command = %v, want none", i, res.Command)
			}
		case i == 4:
			if res.EyeState != EyeClosed {
				t.Errorf("closure frame 4: EyeState = %v, want closed", res.EyeState)
			}
			if res.Command != CommandPause {
				t.Errorf("closure frame 4: Command = %v, want pause", res.Command)
			}
		case i < 18:
			if res.State != Attentive || res.Command != CommandNone {
				t.Errorf("closure frame %d: (%v, command=%v), want (attentive, none)", i, res.State, res.Command)
			}
		default:
			if res.State != NotAttentive || !res.Changed {
				t.Errorf("closure frame 18: (%v, changed=%v), want (not_attentive, true)", res.State, res.Changed)
			}
			if res.Command != CommandNone {
				t.Errorf("closure frame 18: Command = %v, want none (pause already sent)", res.Command)
			}
		}
	}
}

// A blink inside the confirmation run counts as eyes open and must not
// reset the pending confirmation.
func TestBlinkDoesNotInterruptConfirmation(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	at := facemesh.Point{X: 100, Y: 100}

	var last Result
	for i := 1; i <= 16; i++ {
		ear := openEAR
		if i == 8 || i == 9 {
			ear = closedEAR
		}
		last = d.Process(meshFrame(ear, at))
	}
	if last.State != Attentive {
		t.Errorf("state after run with a blink = %v, want attentive", last.State)
	}
}

func TestAbsenceGraceThenPause(t *testing.T) {
	cfg := DefaultConfig()
	d, err := NewDetector(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i < cfg.FaceTimeoutFrames; i++ {
		res := d.Process(nil)
		if res.FaceDetected {
			t.Fatalf("frame %d: FaceDetected = true for nil frame", i)
		}
		if res.Variance != unstableVariance || res.Stable {
			t.Fatalf("frame %d: (variance=%v, stable=%v), want absent defaults", i, res.Variance, res.Stable)
		}
		if res.Command != CommandNone {
			t.Fatalf("frame %d: Command = %v before the timeout, want none", i, res.Command)
		}
	}

	res := d.Process(nil)
	if res.Command != CommandPause {
		t.Errorf("timeout frame: Command = %v, want pause", res.Command)
	}
	if res.State != NotAttentive || res.Changed {
		t.Errorf("timeout frame: (%v, changed=%v), want (not_attentive, false)", res.State, res.Changed)
	}

	// The pause was sent; the absence run keeps collapsing into it.
	if res := d.Process(nil); res.Command != CommandNone {
		t.Errorf("post-timeout frame: Command = %v, want none", res.Command)
	}
}

func TestPartialMeshCountsAsNoFace(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	res := d.Process(&facemesh.Frame{Points: make([]facemesh.Point, 99)})
	if res.FaceDetected {
		t.Error("FaceDetected = true for a partial mesh")
	}
	if _, _, noFace := d.Counters(); noFace != 1 {
		t.Errorf("noFace counter = %d after a partial mesh, want 1", noFace)
	}
}

// Reset must be indistinguishable from a freshly built detector,
// including the command edge memory.
func TestResetMatchesFreshDetector(t *testing.T) {
	cfg := DefaultConfig()
	at := facemesh.Point{X: 100, Y: 100}
	moved := facemesh.Point{X: 400, Y: 250}
	sequence := func() []*facemesh.Frame {
		var frames []*facemesh.Frame
		for i := 0; i < 6; i++ {
			frames = append(frames, meshFrame(openEAR, at))
		}
		frames = append(frames, nil, nil)
		for i := 0; i < 5; i++ {
			frames = append(frames, meshFrame(closedEAR, moved))
		}
		for i := 0; i < 3; i++ {
			frames = append(frames, meshFrame(openEAR, at))
		}
		return frames
	}

	run := func(d *Detector) []Result {
		var out []Result
		for _, f := range sequence() {
			out = append(out, d.Process(f))
		}
		return out
	}

	used, err := NewDetector(cfg)
	if err != nil {
		t.Fatal(err)
	}
	run(used)
	used.Reset()

	fresh, err := NewDetector(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(run(fresh), run(used)); diff != "" {
		t.Errorf("reset detector diverged from fresh (-fresh +reset):\n%s", diff)
	}
}
