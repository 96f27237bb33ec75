// Package config provides environment configuration helpers for
// attentix commands.
package config

import (
	"os"
	"strconv"
)

// Defaults for the attentix runtime.
const (
	DefaultHTTPAddr  = ":8089"
	DefaultCameraID  = 0
	DefaultPython    = "python3"
	DefaultDBPath    = "attentix.db"
	DefaultVideoDir  = "videos"
	DefaultRecordDir = "recordings"
)

// Env returns the named environment variable or the fallback when
// unset or empty.
func Env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt returns the named environment variable parsed as an int, or
// the fallback when unset or unparsable.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// EnvFloat returns the named environment variable parsed as a float64,
// or the fallback when unset or unparsable.
func EnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// EnvBool returns the named environment variable parsed as a bool, or
// the fallback when unset or unparsable. Accepts 1/0, t/f, true/false.
func EnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// HTTPAddr returns the dashboard listen address from HTTP_ADDR.
func HTTPAddr() string {
	return Env("HTTP_ADDR", DefaultHTTPAddr)
}

// CameraID returns the capture device index from CAMERA_ID.
func CameraID() int {
	return EnvInt("CAMERA_ID", DefaultCameraID)
}

// MeshPython returns the Python interpreter for the landmark sidecar
// from MESH_PYTHON.
func MeshPython() string {
	return Env("MESH_PYTHON", DefaultPython)
}

// MeshScript returns an external landmark worker script path from
// MESH_SCRIPT. Empty means the bundled script.
func MeshScript() string {
	return Env("MESH_SCRIPT", "")
}

// DBPath returns the session database path from DB_PATH.
func DBPath() string {
	return Env("DB_PATH", DefaultDBPath)
}

// VideoDir returns the playlist directory from VIDEO_DIR.
func VideoDir() string {
	return Env("VIDEO_DIR", DefaultVideoDir)
}

// RecordDir returns the landmark recording directory from RECORD_DIR.
func RecordDir() string {
	return Env("RECORD_DIR", DefaultRecordDir)
}
