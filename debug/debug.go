// Package debug gates trace output behind PSTORE_DEBUG_* environment flags.
package debug

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

type debug struct {
	Tree   bool
	Ledger bool
	Sched  bool
	Batch  bool
	Store  bool
}

var d *debug

func init() {
	d = &debug{}
	all := boolEnv("PSTORE_DEBUG")
	d.Tree = all || boolEnv("PSTORE_DEBUG_TREE")
	d.Ledger = all || boolEnv("PSTORE_DEBUG_LEDGER")
	d.Sched = all || boolEnv("PSTORE_DEBUG_SCHED")
	d.Batch = all || boolEnv("PSTORE_DEBUG_BATCH")
	d.Store = all || boolEnv("PSTORE_DEBUG_STORE")
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

func Tree() bool {
	return d.Tree
}
func Ledger() bool {
	return d.Ledger
}
func Sched() bool {
	return d.Sched
}
func Batch() bool {
	return d.Batch
}
func Store() bool {
	return d.Store
}

// Logf writes to stderr, rendering maps and slices as yaml.
func Logf(msg string, args ...any) {
	for i := range args {
		switch args[i].(type) {
		case map[string]any, []any:
			args[i] = Value(args[i])
		}
	}
	fmt.Fprintf(os.Stderr, msg, args...)
}

// Value renders v as an indented yaml block for trace output.
func Value(v any) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	return "\n   | " + strings.Join(lines, "\n   | ")
}
