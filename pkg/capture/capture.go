// Package capture provides camera frame sources for the attention
// pipeline: a local webcam through gocv and a remote WebRTC camera.
// Sources hand out JPEG bytes so the landmark sidecar and the
// dashboard hubs share one encoding.
package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/attentix/attentix/internal/log"
)

// Source is a camera delivering JPEG frames. Frame blocks until the
// next frame is available or fails.
type Source interface {
	Frame() ([]byte, error)
	Close() error
}

// WebcamConfig configures a local camera.
type WebcamConfig struct {
	// DeviceID selects the capture device. Negative probes 0..9 and
	// takes the first device that delivers a frame.
	DeviceID int
	// Width, Height and FPS are requested from the driver. Defaults
	// 640x480 at 30.
	Width  int
	Height int
	FPS    int
	// JPEGQuality for encoded frames, default 85.
	JPEGQuality int
}

func (c WebcamConfig) withDefaults() WebcamConfig {
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.JPEGQuality <= 0 {
		c.JPEGQuality = 85
	}
	return c
}

// Webcam reads frames from a local camera device. Frame and Close are
// safe for concurrent use; Close is safe to call more than once.
type Webcam struct {
	mu      sync.Mutex
	cam     *gocv.VideoCapture
	mat     gocv.Mat
	closed  bool
	device  int
	quality int
	fps     *FPSCounter
}

// OpenWebcam opens the configured device, probing 0..9 when DeviceID
// is negative.
func OpenWebcam(cfg WebcamConfig) (*Webcam, error) {
	cfg = cfg.withDefaults()

	cam, device, err := openDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}

	cam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	cam.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	log.Info("webcam opened",
		"device", device,
		"width", cam.Get(gocv.VideoCaptureFrameWidth),
		"height", cam.Get(gocv.VideoCaptureFrameHeight),
		"fps", cam.Get(gocv.VideoCaptureFPS),
	)

	return &Webcam{
		cam:     cam,
		mat:     gocv.NewMat(),
		device:  device,
		quality: cfg.JPEGQuality,
		fps:     NewFPSCounter(),
	}, nil
}

// openDevice opens the requested device, or walks 0..9 until one
// delivers a non-empty frame.
func openDevice(deviceID int) (*gocv.VideoCapture, int, error) {
	if deviceID >= 0 {
		cam, err := gocv.OpenVideoCapture(deviceID)
		if err != nil {
			return nil, 0, fmt.Errorf("capture: open device %d: %w", deviceID, err)
		}
		return cam, deviceID, nil
	}

	for id := 0; id < 10; id++ {
		cam, err := gocv.OpenVideoCapture(id)
		if err != nil {
			continue
		}
		probe := gocv.NewMat()
		ok := cam.Read(&probe)
		empty := probe.Empty()
		probe.Close()
		if ok && !empty {
			return cam, id, nil
		}
		cam.Close()
	}
	return nil, 0, fmt.Errorf("capture: no usable camera in devices 0..9")
}

// Frame reads and JPEG-encodes the next camera frame.
func (w *Webcam) Frame() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("capture: webcam closed")
	}
	if ok := w.cam.Read(&w.mat); !ok {
		return nil, fmt.Errorf("capture: read from device %d failed", w.device)
	}
	if w.mat.Empty() {
		return nil, fmt.Errorf("capture: empty frame from device %d", w.device)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, w.mat, []int{gocv.IMWriteJpegQuality, w.quality})
	if err != nil {
		return nil, fmt.Errorf("capture: encode frame: %w", err)
	}
	defer buf.Close()

	jpeg := make([]byte, buf.Len())
	copy(jpeg, buf.GetBytes())
	w.fps.Tick()
	return jpeg, nil
}

// Device returns the device index in use.
func (w *Webcam) Device() int { return w.device }

// Rate returns the measured frames per second over the last second.
func (w *Webcam) Rate() float64 { return w.fps.Rate() }

// Close releases the device and the reusable frame buffer. Safe to
// call twice.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.mat.Close()
	if err := w.cam.Close(); err != nil {
		return fmt.Errorf("capture: close device %d: %w", w.device, err)
	}
	log.Info("webcam closed", "device", w.device)
	return nil
}
