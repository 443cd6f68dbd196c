// Package target describes the machine a module is compiled for.
//
// Presets are loaded from YAML. The embedded targets.yaml ships the
// supported triples; a user file may add or override entries.
package target

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed targets.yaml
var builtin []byte

// Info is one target preset.
type Info struct {
	Triple         string `yaml:"triple" json:"triple"`
	PointerWidth   int    `yaml:"pointer_width" json:"pointer_width"`
	ImmediateWidth int    `yaml:"immediate_width" json:"immediate_width"`
	LikeMSVC       bool   `yaml:"like_msvc" json:"like_msvc"`
}

// WordBytes returns the pointer size in bytes.
func (i Info) WordBytes() int { return i.PointerWidth / 8 }

// MaxBinaryBits returns the largest binary, in bits, the runtime can
// allocate: the byte count must fit the word with three bits reserved for
// the bit-size shift.
func (i Info) MaxBinaryBits() uint64 {
	return (uint64(1) << (i.PointerWidth - 3)) - 1
}

// ExceptionDialect returns the unwinding model landing pads use.
func (i Info) ExceptionDialect() string {
	if i.LikeMSVC {
		return "seh"
	}
	return "itanium"
}

// Validate checks the preset for consistency.
func (i Info) Validate() error {
	if i.Triple == "" {
		return fmt.Errorf("target: missing triple")
	}
	if i.PointerWidth != 32 && i.PointerWidth != 64 {
		return fmt.Errorf("target %s: pointer_width %d is not 32 or 64", i.Triple, i.PointerWidth)
	}
	if i.ImmediateWidth < 1 || i.ImmediateWidth > i.PointerWidth {
		return fmt.Errorf("target %s: immediate_width %d outside 1..%d",
			i.Triple, i.ImmediateWidth, i.PointerWidth)
	}
	return nil
}

// Catalog is a set of presets with a default.
type Catalog struct {
	Default string `yaml:"default"`
	Targets []Info `yaml:"targets"`
}

// Load decodes a catalog from YAML. Unknown fields are rejected.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("target: decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile decodes a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Builtin returns the embedded catalog.
func Builtin() *Catalog {
	c, err := Load(strings.NewReader(string(builtin)))
	if err != nil {
		panic(fmt.Sprintf("target: embedded catalog: %v", err))
	}
	return c
}

// Validate checks every preset and that triples are unique.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Triple] {
			return fmt.Errorf("target: duplicate triple %s", t.Triple)
		}
		seen[t.Triple] = true
	}
	if c.Default != "" && !seen[c.Default] {
		return fmt.Errorf("target: default %s is not defined", c.Default)
	}
	return nil
}

// Lookup returns the preset for triple. An empty triple selects the
// default.
func (c *Catalog) Lookup(triple string) (Info, error) {
	if triple == "" {
		triple = c.Default
	}
	for _, t := range c.Targets {
		if t.Triple == triple {
			return t, nil
		}
	}
	return Info{}, fmt.Errorf("target: unknown triple %q (known: %s)",
		triple, strings.Join(c.Triples(), ", "))
}

// Triples returns the preset names in sorted order.
func (c *Catalog) Triples() []string {
	out := make([]string, len(c.Targets))
	for i, t := range c.Targets {
		out[i] = t.Triple
	}
	slices.Sort(out)
	return out
}

// Merge returns a catalog with other's presets layered over c's. Presets
// with the same triple are replaced; other's default wins when set.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	out := &Catalog{Default: c.Default}
	out.Targets = append(out.Targets, c.Targets...)
	for _, t := range other.Targets {
		i := slices.IndexFunc(out.Targets, func(x Info) bool { return x.Triple == t.Triple })
		if i >= 0 {
			out.Targets[i] = t
		} else {
			out.Targets = append(out.Targets, t)
		}
	}
	if other.Default != "" {
		out.Default = other.Default
	}
	return out
}
