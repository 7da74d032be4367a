// Package scenario describes and runs scripted owner/cache interactions.
//
// A scenario declares a set of screen owners and a list of steps. Each step
// resolves a shared instance, releases one, destroys or reconfigures an
// owner, or trims the cache, and may carry expectations that are checked
// after the step runs.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Op names a step operation.
type Op string

const (
	OpOpen        Op = "open"
	OpResolve     Op = "resolve"
	OpRelease     Op = "release"
	OpDestroy     Op = "destroy"
	OpReconfigure Op = "reconfigure"
	OpTrim        Op = "trim"
)

func (op Op) needsOwner() bool {
	return op != OpTrim
}

func (op Op) needsType() bool {
	return op == OpResolve || op == OpRelease
}

func (op Op) valid() bool {
	switch op {
	case OpOpen, OpResolve, OpRelease, OpDestroy, OpReconfigure, OpTrim:
		return true
	}
	return false
}

// Scenario is a scripted run.
type Scenario struct {
	Name   string   `yaml:"name,omitempty"`
	Owners []string `yaml:"owners"`
	Steps  []Step   `yaml:"steps"`
}

// Step is one operation of a scenario.
type Step struct {
	Op    Op     `yaml:"op"`
	Owner string `yaml:"owner,omitempty"`
	// Type and Name form the cache key. A missing name is distinct from an
	// empty one.
	Type string  `yaml:"type,omitempty"`
	Name *string `yaml:"name,omitempty"`
	// Transient marks a release as a configuration change.
	Transient bool    `yaml:"transient,omitempty"`
	Expect    *Expect `yaml:"expect,omitempty"`
}

// Expect holds the observations checked after a step. Nil fields are not
// checked.
type Expect struct {
	Refs     *int    `yaml:"refs,omitempty"`
	Cached   *bool   `yaml:"cached,omitempty"`
	Created  *int    `yaml:"created,omitempty"`
	Disposed *int    `yaml:"disposed,omitempty"`
	Entries  *int    `yaml:"entries,omitempty"`
	Error    string  `yaml:"error,omitempty"`
	Instance *string `yaml:"instance,omitempty"`
}

// Load reads and validates the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if s.Name == "" {
		s.Name = filepath.Base(path)
	}
	return s, nil
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every step is well formed and names a declared owner.
func (s *Scenario) Validate() error {
	declared := make(map[string]bool, len(s.Owners))
	for _, name := range s.Owners {
		if name == "" {
			return fmt.Errorf("owners: empty owner name")
		}
		if declared[name] {
			return fmt.Errorf("owners: duplicate owner %q", name)
		}
		declared[name] = true
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}

	for i, st := range s.Steps {
		at := fmt.Sprintf("step %d (%s)", i+1, st.Op)
		if !st.Op.valid() {
			return fmt.Errorf("step %d: unknown op %q", i+1, st.Op)
		}
		if st.Op.needsOwner() {
			if st.Owner == "" {
				return fmt.Errorf("%s: owner is required", at)
			}
			if !declared[st.Owner] {
				return fmt.Errorf("%s: undeclared owner %q", at, st.Owner)
			}
		}
		if st.Op.needsType() && st.Type == "" {
			return fmt.Errorf("%s: type is required", at)
		}
		if st.Type == "" && st.Expect != nil && (st.Expect.Refs != nil || st.Expect.Cached != nil || st.Expect.Instance != nil) {
			return fmt.Errorf("%s: key expectations need a type", at)
		}
		if st.Transient && st.Op != OpRelease {
			return fmt.Errorf("%s: transient only applies to release", at)
		}
	}
	return nil
}
