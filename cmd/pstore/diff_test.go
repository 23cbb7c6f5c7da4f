package main

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiffChanges(t *testing.T) {
	cfg := &DiffConfig{MainConfig: &MainConfig{NoColor: true}}
	a := map[string]any{"a": 1, "b": "x"}
	b := map[string]any{"a": 2, "c": true}
	var buf bytes.Buffer
	differs, err := diffChanges(cfg, &buf, a, b)
	if err != nil {
		t.Fatal(err)
	}
	if !differs {
		t.Fatal("expected a difference")
	}
	want := "~ /a: 1 -> 2\n- /b: x\n+ /c: true\n"
	if d := cmp.Diff(want, buf.String()); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
}

func TestDiffLinesEqual(t *testing.T) {
	cfg := &DiffConfig{MainConfig: &MainConfig{NoColor: true}}
	doc := map[string]any{"a": []any{1, 2}}
	var buf bytes.Buffer
	differs, err := diffLines(cfg, &buf, doc, doc)
	if err != nil {
		t.Fatal(err)
	}
	if differs || buf.Len() != 0 {
		t.Errorf("got differs=%v output %q", differs, buf.String())
	}
}

func TestColorize(t *testing.T) {
	var buf bytes.Buffer
	tests := []struct {
		name string
		cfg  MainConfig
		want bool
	}{
		{"default buffer", MainConfig{}, false},
		{"forced", MainConfig{Color: true}, true},
		{"disabled", MainConfig{Color: true, NoColor: true}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.colorize(&buf); got != tc.want {
				t.Errorf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestDocArg(t *testing.T) {
	if got := docArg([]string{"/a"}, 1); got != "-" {
		t.Errorf("got %q", got)
	}
	if got := docArg([]string{"/a", "f.yaml"}, 1); got != "f.yaml" {
		t.Errorf("got %q", got)
	}
}
