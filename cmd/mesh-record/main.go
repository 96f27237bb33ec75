// mesh-record captures a camera feed through the landmark worker and
// appends the mesh stream to a JSONL file for later replay.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/attentix/attentix/internal/config"
	"github.com/attentix/attentix/pkg/capture"
	"github.com/attentix/attentix/pkg/facemesh"
	"github.com/attentix/attentix/pkg/facemesh/mediapipe"
)

func main() {
	camera := flag.Int("camera", config.CameraID(), "Webcam device index, -1 probes 0..9")
	remote := flag.String("remote", "", "WebRTC camera signalling URL instead of a webcam")
	python := flag.String("python", config.MeshPython(), "Python interpreter for the landmark worker")
	script := flag.String("script", config.MeshScript(), "External landmark worker script, empty uses the bundled one")
	dir := flag.String("dir", config.RecordDir(), "Recording directory")
	duration := flag.Duration("duration", 0, "Stop after this long, 0 records until Ctrl+C")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if *duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	source, err := openSource(ctx, *camera, *remote)
	if err != nil {
		log.Fatalf("❌ Open camera: %v", err)
	}
	defer source.Close()

	worker := mediapipe.NewWorker(mediapipe.Config{Python: *python, Script: *script})
	if err := worker.Start(ctx); err != nil {
		log.Fatalf("❌ Start landmark worker: %v", err)
	}
	defer worker.Close()

	rec, path, err := facemesh.CreateRecording(*dir)
	if err != nil {
		log.Fatalf("❌ Create recording: %v", err)
	}

	fmt.Printf("📝 Recording to %s (Ctrl+C to stop)\n", path)
	record(ctx, source, worker, rec)

	if err := rec.Close(); err != nil {
		log.Fatalf("❌ Close recording: %v", err)
	}
	fmt.Printf("📝 Recorded %d mesh records\n", rec.Count())
}

func openSource(ctx context.Context, camera int, remote string) (capture.Source, error) {
	if remote != "" {
		return capture.DialRemote(ctx, capture.RemoteConfig{SignallingURL: remote})
	}
	return capture.OpenWebcam(capture.WebcamConfig{DeviceID: camera})
}

func record(ctx context.Context, source capture.Source, worker *mediapipe.Worker, rec *facemesh.Recorder) {
	for ctx.Err() == nil {
		jpeg, err := source.Frame()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("⚠️  Camera frame: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		frame, err := worker.Mesh(jpeg)
		if err != nil {
			log.Printf("⚠️  Landmark worker: %v", err)
			continue
		}

		if frame.Valid() {
			err = rec.WriteFrame(frame)
		} else {
			err = rec.WriteGap(time.Now())
		}
		if err != nil {
			log.Printf("⚠️  Write record: %v", err)
		}
	}
}
