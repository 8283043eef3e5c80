package snapshot

import (
	"golang.org/x/sync/singleflight"

	"instres/internal/resolver"
)

// Writer collapses concurrent exports to the same path into one.
type Writer struct {
	group singleflight.Group
}

// Export builds a payload from s and writes it to path. Callers racing on
// the same path share the first caller's payload and result.
func (w *Writer) Export(path string, s *resolver.Session) (*Payload, error) {
	v, err, _ := w.group.Do(path, func() (any, error) {
		p := Build(s)
		if err := Write(path, p); err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Payload), nil
}
