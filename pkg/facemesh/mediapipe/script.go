package mediapipe

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed mesh_worker.py
var meshWorkerScript []byte

// materializeScript writes the bundled worker script to a fresh temp
// directory and returns the script path plus the directory to clean up.
func materializeScript() (path, dir string, err error) {
	dir, err = os.MkdirTemp("", "attentix-mediapipe-*")
	if err != nil {
		return "", "", fmt.Errorf("mediapipe: temp dir: %w", err)
	}
	path = filepath.Join(dir, "mesh_worker.py")
	if err := os.WriteFile(path, meshWorkerScript, 0o644); err != nil {
		os.RemoveAll(dir)
		return "", "", fmt.Errorf("mediapipe: write worker script: %w", err)
	}
	return path, dir, nil
}
