// Package snapshot exports the state of a resolver session: its generic
// units and every instance record with key, placement and elaboration state.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"instres/internal/generic"
	"instres/internal/registry"
	"instres/internal/resolver"
)

// Current schema version - increment when Payload format changes
const schemaVersion uint16 = 1

// ErrSchema reports a snapshot written by an incompatible version.
var ErrSchema = errors.New("snapshot schema mismatch")

// Payload is the encoded form of a session.
type Payload struct {
	Schema    uint16
	Session   string
	Created   time.Time
	Units     []Unit
	Instances []Instance
}

// Unit describes one declared generic.
type Unit struct {
	ID                 uint32
	Name               string
	Formals            []string
	Stateful           bool
	ObservableIdentity bool
}

// Site is a scope.Site without the scope package.
type Site struct {
	Scope uint32
	Pos   uint32
}

// Instance describes one record of the identity registry.
type Instance struct {
	ID     uint32
	Unit   uint32
	Key    string // stable key form
	Label  string // human-readable key
	Seq    int    // sibling index under the same key
	State  string
	Placed bool
	Decl   Site
	Level  uint32
	Sites  []Site
	Entity string
	Error  string
}

// Build captures the current state of s.
func Build(s *resolver.Session) *Payload {
	p := &Payload{
		Schema:  schemaVersion,
		Session: s.ID().String(),
		Created: time.Now().UTC(),
	}
	units := s.Units()
	for i := 1; i <= units.Len(); i++ {
		u := units.Get(generic.UnitID(i))
		if u == nil {
			continue
		}
		names := make([]string, len(u.Formals))
		for j, f := range u.Formals {
			names[j] = f.Name
		}
		p.Units = append(p.Units, Unit{
			ID:                 uint32(u.ID),
			Name:               u.Name,
			Formals:            names,
			Stateful:           u.Stateful,
			ObservableIdentity: u.ObservableIdentity,
		})
	}
	for _, info := range s.Registry().Snapshot() {
		p.Instances = append(p.Instances, instanceOf(s, info))
	}
	return p
}

func instanceOf(s *resolver.Session, info registry.Info) Instance {
	x := Instance{
		ID:     uint32(info.ID),
		Unit:   uint32(info.Key.Unit),
		Key:    info.Key.String(),
		Seq:    info.Seq,
		State:  info.State.String(),
		Placed: info.Placed,
		Decl:   Site{Scope: uint32(info.Decl.Scope), Pos: info.Decl.Pos},
		Level:  info.Level,
		Entity: info.Entity,
	}
	if u := s.Units().Get(info.Key.Unit); u != nil {
		x.Label = info.Key.Label(u, s.Types())
	}
	for _, site := range info.Sites {
		x.Sites = append(x.Sites, Site{Scope: uint32(site.Scope), Pos: site.Pos})
	}
	if info.Err != nil {
		x.Error = info.Err.Error()
	}
	return x
}

// Digest fingerprints the identity-relevant part of the payload: keys,
// placements and states. Session id and timestamps do not contribute, so
// two runs over the same input agree.
func (p *Payload) Digest() string {
	h := sha256.New()
	for _, x := range p.Instances {
		fmt.Fprintf(h, "%d|%s|%d|%s|%d:%d|%d\n", x.ID, x.Key, x.Seq, x.State, x.Decl.Scope, x.Decl.Pos, x.Level)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Write encodes p to path, replacing any previous file atomically.
func Write(path string, p *Payload) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "snapshot-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if err = msgpack.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// Read decodes the snapshot at path.
func Read(path string) (*Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var p Payload
	if err := msgpack.NewDecoder(f).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if p.Schema != schemaVersion {
		return nil, fmt.Errorf("%w: %s has version %d, expected %d", ErrSchema, path, p.Schema, schemaVersion)
	}
	return &p, nil
}
