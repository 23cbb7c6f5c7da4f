package scenario

import (
	"context"
	"errors"
	"testing"
)

func run(t *testing.T, doc string) error {
	t.Helper()
	sc, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return Run(context.Background(), sc, nil)
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "fetch lifecycle",
			doc: `
tree: {users: []}
steps:
- submit: {id: load, path: /users, value: [ann, bob], block: true}
- assert: state("/users").status == "loading" && status("load") == "pending"
- release: load
- wait: load
- assert: state("/users").status == "success"
- assert: at("/users[1]") == "bob" && result("load")[0] == "ann"
`,
		},
		{
			name: "optimistic rollback on error",
			doc: `
tree: {n: 1, other: x}
steps:
- submit: {id: m, kind: mutate, path: /n, optimistic: 2, fail: nope, block: true}
- assert: at("/n") == 2 && stats().optimistic == 1
- release: m
- wait: m
- assert: at("/n") == 1 && state("/n").status == "error" && errmsg("m") contains "nope"
`,
		},
		{
			name: "cancel restores and goes idle",
			doc: `
steps:
- submit: {id: m, kind: mutate, path: /a, optimistic: yes, block: true}
- cancel: m
- wait: m
- assert: status("m") == "cancelled" && !exists("/a") && state("/a").status == "idle"
`,
		},
		{
			name: "retry exhaustion",
			doc: `
steps:
- submit: {id: f, path: /a, fail: down, retry: 2, retryDelay: 1ms}
- wait: f
- assert: calls("f") == 3 && status("f") == "failed"
`,
		},
		{
			name: "retry recovers",
			doc: `
steps:
- submit: {id: f, path: /a, value: ok, fail: flaky, failTimes: 1, retry: 3, retryDelay: 1ms}
- wait: f
- assert: calls("f") == 2 && at("/a") == "ok"
`,
		},
		{
			name: "priority with one slot",
			doc: `
config: {maxConcurrent: 1}
steps:
- submit: {id: block, path: /block, block: true, discard: true}
- submit: {id: a, path: /log, priority: low, value: low, op: append}
- submit: {id: b, path: /log, priority: high, value: high, op: append}
- assert: stats().pending == 2 && stats().executing == 1
- release: block
- wait: a
- wait: b
- assert: at("/log") == ["high", "low"] && stats().peak == 1
`,
		},
		{
			name: "batch fail fast",
			doc: `
steps:
- batch:
    mode: sequential
    failFast: true
    items:
    - {id: one, path: /one, value: 1}
    - {id: two, path: /two, fail: boom}
    - {id: three, path: /three, value: 3}
- assert: status("one") == "completed" && status("two") == "failed" && status("three") == "cancelled"
- assert: state("/three").status == "idle" && !exists("/three") && calls("three") == 0
`,
		},
		{
			name: "invalidate and patch",
			doc: `
tree: {a: {b: 1}, c: 2}
steps:
- submit: {id: f, path: /a/b, value: 5}
- wait: f
- invalidate: {path: /a, children: true, clear: true}
- assert: state("/a/b").status == "idle" && !exists("/a")
- patch: [{op: add, path: /d, value: z}]
- set: {path: /c, value: 3}
- assert: at("/d") == "z" && at("/c") == 3
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(t, tt.doc); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestFailingAssertion(t *testing.T) {
	err := run(t, `
steps:
- set: {path: /a, value: 1}
- assert: at("/a") == 2
`)
	var aErr *AssertionError
	if !errors.As(err, &aErr) || aErr.Step != 1 {
		t.Errorf("got %v, want an assertion error at step 1", err)
	}
}

func TestStepErrors(t *testing.T) {
	err := run(t, `
steps:
- wait: nobody
`)
	var sErr *StepError
	if !errors.As(err, &sErr) || sErr.Step != 0 {
		t.Errorf("got %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	docs := map[string]string{
		"two actions":   "steps:\n- {wait: a, cancel: a}\n",
		"no action":     "steps:\n- {}\n",
		"submit no id":  "steps:\n- submit: {path: /a}\n",
		"unknown field": "steps:\n- waitfor: a\n",
		"bad sleep":     "steps:\n- sleep: soon\n",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestStoreConfig(t *testing.T) {
	sc, err := Parse([]byte("config: {maxConcurrent: 3, retryDelay: 5ms}\nsteps: []\n"))
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := sc.StoreConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxConcurrent != 3 || cfg.RetryDelay.Milliseconds() != 5 || !cfg.RollbackOnError {
		t.Errorf("unexpected config %+v", cfg)
	}
	sc.Config = map[string]any{"maxConcurrent": 0}
	if _, err := sc.StoreConfig(); err == nil {
		t.Error("expected a validation error")
	}
}
