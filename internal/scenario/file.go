// Package scenario describes a resolver workload declaratively: scopes,
// types, generic units and the references a front end would issue. It
// stands in for the front end in tests and in the instres CLI.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a scenario file.
type Format uint8

const (
	FormatTOML Format = iota + 1
	FormatYAML
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%s: unknown scenario format (expected .toml, .yaml or .yml)", path)
	}
}

// File is a decoded scenario.
type File struct {
	Options    OptionsSpec     `toml:"options" yaml:"options"`
	Scopes     []ScopeSpec     `toml:"scopes" yaml:"scopes"`
	Types      []TypeSpec      `toml:"types" yaml:"types"`
	Units      []UnitSpec      `toml:"units" yaml:"units"`
	References []ReferenceSpec `toml:"references" yaml:"references"`
}

type OptionsSpec struct {
	Sharing                string `toml:"sharing" yaml:"sharing"`
	PassThroughExpressions bool   `toml:"pass_through_expressions" yaml:"pass_through_expressions"`
	MaxDiagnostics         int    `toml:"max_diagnostics" yaml:"max_diagnostics"`
}

// ScopeSpec declares a scope nested in Parent (the root when empty) at
// position Anchor of the parent.
type ScopeSpec struct {
	Name   string `toml:"name" yaml:"name"`
	Kind   string `toml:"kind" yaml:"kind"`
	Parent string `toml:"parent" yaml:"parent"`
	Anchor uint32 `toml:"anchor" yaml:"anchor"`
}

// TypeSpec declares a descriptor. Kind is one of scalar, subtype, alias,
// array, access, object or subprogram.
type TypeSpec struct {
	Name      string `toml:"name" yaml:"name"`
	Kind      string `toml:"kind" yaml:"kind"`
	Scope     string `toml:"scope" yaml:"scope"`
	Pos       uint32 `toml:"pos" yaml:"pos"`
	Anonymous bool   `toml:"anonymous" yaml:"anonymous"`

	Base       string      `toml:"base" yaml:"base"` // subtype, alias, object
	Indices    []string    `toml:"indices" yaml:"indices"`
	Element    string      `toml:"element" yaml:"element"`
	Designated string      `toml:"designated" yaml:"designated"`
	Constant   bool        `toml:"constant" yaml:"constant"`
	Params     []ParamSpec `toml:"params" yaml:"params"`
	Result     string      `toml:"result" yaml:"result"`
}

type ParamSpec struct {
	Name string `toml:"name" yaml:"name"`
	Mode string `toml:"mode" yaml:"mode"`
	Type string `toml:"type" yaml:"type"`
}

// UnitSpec declares a generic unit whose body is elaborated at Scope/Pos.
type UnitSpec struct {
	Name               string       `toml:"name" yaml:"name"`
	Scope              string       `toml:"scope" yaml:"scope"`
	Pos                uint32       `toml:"pos" yaml:"pos"`
	Stateful           bool         `toml:"stateful" yaml:"stateful"`
	ObservableIdentity bool         `toml:"observable_identity" yaml:"observable_identity"`
	FailElaboration    bool         `toml:"fail_elaboration" yaml:"fail_elaboration"`
	Formals            []FormalSpec `toml:"formals" yaml:"formals"`
}

// FormalSpec declares a formal. Type positions name another formal of the
// unit, a declared type, or nothing ("" or "<>").
type FormalSpec struct {
	Name       string      `toml:"name" yaml:"name"`
	Kind       string      `toml:"kind" yaml:"kind"`
	Shape      string      `toml:"shape" yaml:"shape"`
	Indices    []string    `toml:"indices" yaml:"indices"`
	Element    string      `toml:"element" yaml:"element"`
	Designated string      `toml:"designated" yaml:"designated"`
	Constant   bool        `toml:"constant" yaml:"constant"`
	ObjectType string      `toml:"object_type" yaml:"object_type"`
	Params     []ParamSpec `toml:"params" yaml:"params"`
	Result     string      `toml:"result" yaml:"result"`
	Package    string      `toml:"package" yaml:"package"`
}

// ReferenceSpec is one structural reference. An actual written "@id"
// passes the instance of the earlier reference id as a package actual.
type ReferenceSpec struct {
	ID      string       `toml:"id" yaml:"id"`
	TU      string       `toml:"tu" yaml:"tu"`
	Generic string       `toml:"generic" yaml:"generic"`
	Scope   string       `toml:"scope" yaml:"scope"`
	Pos     uint32       `toml:"pos" yaml:"pos"`
	Actuals []ActualSpec `toml:"actuals" yaml:"actuals"`
	Await   bool         `toml:"await" yaml:"await"`
	// Expect is the diagnostic ID the reference must fail with; empty
	// means it must succeed.
	Expect string `toml:"expect" yaml:"expect"`
}

type ActualSpec struct {
	Name string `toml:"name" yaml:"name"`
	Expr string `toml:"expr" yaml:"expr"`
}

// Load reads and decodes a scenario file.
func Load(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a scenario. Unknown keys are errors in both formats.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatTOML:
		meta, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
		if !meta.IsDefined("references") {
			return nil, errors.New("missing [[references]]")
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown scenario format %d", format)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if len(f.References) == 0 {
		return errors.New("scenario has no references")
	}
	seen := make(map[string]struct{})
	check := func(section, name string) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s: entry without a name", section)
		}
		key := section + ":" + strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%s: duplicate name %q", section, name)
		}
		seen[key] = struct{}{}
		return nil
	}
	for _, s := range f.Scopes {
		if err := check("scopes", s.Name); err != nil {
			return err
		}
	}
	for _, u := range f.Units {
		if err := check("units", u.Name); err != nil {
			return err
		}
	}
	for i, r := range f.References {
		if r.Generic == "" {
			return fmt.Errorf("references[%d]: missing generic", i)
		}
		if r.ID != "" {
			if err := check("references", r.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
