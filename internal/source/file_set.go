package source

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// FileSet names the translation units taking part in one session.
// Safe for concurrent use.
type FileSet struct {
	mu    sync.RWMutex
	names []string // index 0 reserved for NoFileID
	index map[string]FileID
}

// NewFileSet creates an empty set.
func NewFileSet() *FileSet {
	return &FileSet{
		names: make([]string, 1, 8),
		index: make(map[string]FileID, 8),
	}
}

// Add registers a unit name and returns its ID. Adding an existing name
// returns the ID assigned the first time.
func (fs *FileSet) Add(name string) FileID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if id, ok := fs.index[name]; ok {
		return id
	}
	value, err := safecast.Conv[uint32](len(fs.names))
	if err != nil {
		panic(fmt.Errorf("file set overflow: %w", err))
	}
	id := FileID(value)
	fs.names = append(fs.names, name)
	fs.index[name] = id
	return id
}

// Name returns the unit name registered under id.
func (fs *FileSet) Name(id FileID) string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if id == NoFileID || int(id) >= len(fs.names) {
		return ""
	}
	return fs.names[id]
}

// Len reports the number of registered units.
func (fs *FileSet) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.names) - 1
}

// Format renders a span with the unit name instead of the numeric ID.
func (fs *FileSet) Format(sp Span) string {
	name := fs.Name(sp.File)
	if name == "" {
		return sp.String()
	}
	return fmt.Sprintf("%s:%d-%d", name, sp.Start, sp.End)
}
