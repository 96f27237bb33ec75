package player

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// videoExtensions the playlist scanner accepts.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mkv":  true,
	".mov":  true,
	".webm": true,
}

// Playlist is an ordered, wrapping list of video files from one
// directory.
type Playlist struct {
	mu    sync.Mutex
	dir   string
	files []string
	index int
}

// LoadPlaylist scans dir for video files, sorted by name.
func LoadPlaylist(dir string) (*Playlist, error) {
	p := &Playlist{dir: dir}
	if err := p.Rescan(); err != nil {
		return nil, err
	}
	return p, nil
}

// Rescan re-reads the directory, keeping the current entry selected
// when it survives the scan.
func (p *Playlist) Rescan() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("player: scan playlist dir %s: %w", p.dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if videoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(p.dir, e.Name()))
		}
	}
	sort.Strings(files)

	p.mu.Lock()
	defer p.mu.Unlock()
	current := ""
	if p.index < len(p.files) {
		current = p.files[p.index]
	}
	p.files = files
	p.index = 0
	for i, f := range files {
		if f == current {
			p.index = i
			break
		}
	}
	return nil
}

// Current returns the selected entry.
func (p *Playlist) Current() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.files) == 0 {
		return "", fmt.Errorf("player: no videos in %s", p.dir)
	}
	return p.files[p.index], nil
}

// Next advances the selection, wrapping at the end.
func (p *Playlist) Next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.files) == 0 {
		return "", fmt.Errorf("player: no videos in %s", p.dir)
	}
	p.index = (p.index + 1) % len(p.files)
	return p.files[p.index], nil
}

// Previous steps the selection back, wrapping at the start.
func (p *Playlist) Previous() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.files) == 0 {
		return "", fmt.Errorf("player: no videos in %s", p.dir)
	}
	p.index = (p.index - 1 + len(p.files)) % len(p.files)
	return p.files[p.index], nil
}

// Count returns the number of entries.
func (p *Playlist) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}

// Index returns the selected position, zero based.
func (p *Playlist) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// Entries returns a copy of the playlist paths.
func (p *Playlist) Entries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.files))
	copy(out, p.files)
	return out
}
