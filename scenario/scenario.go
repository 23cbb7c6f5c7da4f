// Package scenario drives a store through a scripted sequence of steps
// with simulated operations and checks expectations written as expr-lang
// expressions.
//
// A scenario document looks like:
//
//	config:
//	  maxConcurrent: 1
//	tree:
//	  users: []
//	steps:
//	- submit: {id: load, path: /users, value: [ann], block: true}
//	- assert: state("/users").status == "loading"
//	- release: load
//	- wait: load
//	- assert: at("/users[0]") == "ann"
package scenario

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/signadot/pathstore/store"
)

type Scenario struct {
	// Config is decoded with store.ParseConfig; missing settings keep
	// their defaults.
	Config any    `yaml:"config,omitempty"`
	Tree   any    `yaml:"tree,omitempty"`
	Steps  []Step `yaml:"steps"`
}

// Step holds exactly one action.
type Step struct {
	Submit     *Submit     `yaml:"submit,omitempty"`
	Wait       string      `yaml:"wait,omitempty"`
	Release    string      `yaml:"release,omitempty"`
	Cancel     string      `yaml:"cancel,omitempty"`
	CancelPath string      `yaml:"cancelPath,omitempty"`
	CancelAll  bool        `yaml:"cancelAll,omitempty"`
	Invalidate *Invalidate `yaml:"invalidate,omitempty"`
	Set        *Set        `yaml:"set,omitempty"`
	Patch      any         `yaml:"patch,omitempty"`
	Batch      *Batch      `yaml:"batch,omitempty"`
	Assert     string      `yaml:"assert,omitempty"`
	Sleep      string      `yaml:"sleep,omitempty"`
}

// Submit describes a command and the simulated operation behind it.
type Submit struct {
	ID       string `yaml:"id"`
	Path     string `yaml:"path"`
	Kind     string `yaml:"kind,omitempty"`     // fetch (default) or mutate
	Priority string `yaml:"priority,omitempty"` // low, normal or high
	Op       string `yaml:"op,omitempty"`       // how the result is written

	// Value is the operation's result.
	Value any `yaml:"value,omitempty"`
	// Fail makes the operation fail with this message, for the first
	// FailTimes calls when FailTimes is positive.
	Fail      string `yaml:"fail,omitempty"`
	FailTimes int    `yaml:"failTimes,omitempty"`
	// Delay is a duration the operation takes.
	Delay string `yaml:"delay,omitempty"`
	// Block holds the operation until a release step names it.
	Block bool `yaml:"block,omitempty"`

	Optimistic      any    `yaml:"optimistic,omitempty"`
	RollbackOnError *bool  `yaml:"rollbackOnError,omitempty"`
	Retry           *int   `yaml:"retry,omitempty"`
	RetryDelay      string `yaml:"retryDelay,omitempty"`
	Discard         bool   `yaml:"discard,omitempty"`
}

type Invalidate struct {
	Path     string `yaml:"path"`
	Children bool   `yaml:"children,omitempty"`
	Parents  bool   `yaml:"parents,omitempty"`
	Clear    bool   `yaml:"clear,omitempty"`
}

type Set struct {
	Path  string `yaml:"path"`
	Value any    `yaml:"value,omitempty"`
	Op    string `yaml:"op,omitempty"`
}

// Batch runs its submits as one batch and waits for it.
type Batch struct {
	Mode     string   `yaml:"mode,omitempty"` // parallel (default) or sequential
	FailFast bool     `yaml:"failFast,omitempty"`
	Items    []Submit `yaml:"items"`
}

// Parse decodes a scenario document.
func Parse(data []byte) (*Scenario, error) {
	sc := &Scenario{}
	if err := yaml.UnmarshalWithOptions(data, sc, yaml.Strict()); err != nil {
		return nil, err
	}
	for i := range sc.Steps {
		if err := sc.Steps[i].validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return sc, nil
}

// Load reads and decodes a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	return sc, nil
}

// StoreConfig returns the scenario's store configuration.
func (sc *Scenario) StoreConfig() (*store.Config, error) {
	if sc.Config == nil {
		return store.DefaultConfig(), nil
	}
	data, err := yaml.Marshal(sc.Config)
	if err != nil {
		return nil, err
	}
	return store.ParseConfig(data)
}

func (s *Step) validate() error {
	n := 0
	for _, set := range []bool{
		s.Submit != nil, s.Wait != "", s.Release != "", s.Cancel != "",
		s.CancelPath != "", s.CancelAll, s.Invalidate != nil, s.Set != nil,
		s.Patch != nil, s.Batch != nil, s.Assert != "", s.Sleep != "",
	} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("want exactly one action, got %d", n)
	}
	if s.Submit != nil && s.Submit.ID == "" {
		return fmt.Errorf("submit needs an id")
	}
	if s.Sleep != "" {
		if _, err := time.ParseDuration(s.Sleep); err != nil {
			return err
		}
	}
	return nil
}

// Name describes the step for reports.
func (s *Step) Name() string {
	switch {
	case s.Submit != nil:
		return "submit " + s.Submit.ID
	case s.Wait != "":
		return "wait " + s.Wait
	case s.Release != "":
		return "release " + s.Release
	case s.Cancel != "":
		return "cancel " + s.Cancel
	case s.CancelPath != "":
		return "cancelPath " + s.CancelPath
	case s.CancelAll:
		return "cancelAll"
	case s.Invalidate != nil:
		return "invalidate " + s.Invalidate.Path
	case s.Set != nil:
		return "set " + s.Set.Path
	case s.Patch != nil:
		return "patch"
	case s.Batch != nil:
		return fmt.Sprintf("batch of %d", len(s.Batch.Items))
	case s.Assert != "":
		return "assert " + s.Assert
	case s.Sleep != "":
		return "sleep " + s.Sleep
	}
	return "empty"
}
