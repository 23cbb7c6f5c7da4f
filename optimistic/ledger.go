// Package optimistic records tentative tree writes so they can be committed
// or rolled back once the owning command settles.
//
// Rollback restores the whole tree captured before the optimistic write.
// Writes to other paths that land between Apply and Rollback are lost; this
// is the price of keeping the ledger a set of snapshots instead of inverse
// patches.
package optimistic

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/signadot/pathstore/debug"
	"github.com/signadot/pathstore/tree"
	"github.com/signadot/pathstore/xpath"
)

var ErrDuplicate = errors.New("optimistic record already exists")

// Key identifies a record by command and canonical path.
type Key struct {
	CommandID string
	Path      string
}

func (k Key) String() string {
	return k.CommandID + k.Path
}

type Record struct {
	Original        any
	Proposed        any
	RollbackOnError bool
}

// Ledger is not safe for concurrent use.
type Ledger struct {
	records map[Key]*Record
	log     *slog.Logger
}

func New(log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		records: map[Key]*Record{},
		log:     log.With("component", "optimistic"),
	}
}

// Apply records current as the snapshot for (id, p) and returns current with
// proposed written at p.
func (l *Ledger) Apply(p xpath.Path, id string, proposed, current any, rollbackOnError bool) (any, error) {
	key := Key{CommandID: id, Path: p.String()}
	if _, ok := l.records[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, key)
	}
	l.records[key] = &Record{
		Original:        current,
		Proposed:        proposed,
		RollbackOnError: rollbackOnError,
	}
	if debug.Ledger() {
		debug.Logf("ledger: apply %s %v\n", key, proposed)
	}
	return tree.Set(current, p, proposed, tree.Replace), nil
}

// Commit writes final at p over current and drops the record. It reports
// false, leaving current untouched, when no record exists.
func (l *Ledger) Commit(id string, p xpath.Path, final, current any) (any, bool) {
	key := Key{CommandID: id, Path: p.String()}
	if _, ok := l.records[key]; !ok {
		return current, false
	}
	delete(l.records, key)
	if debug.Ledger() {
		debug.Logf("ledger: commit %s %v\n", key, final)
	}
	return tree.Set(current, p, final, tree.Replace), true
}

// Rollback drops the record and returns the tree captured by Apply.
func (l *Ledger) Rollback(id string, p xpath.Path) (any, bool) {
	key := Key{CommandID: id, Path: p.String()}
	rec, ok := l.records[key]
	if !ok {
		return nil, false
	}
	delete(l.records, key)
	l.log.Debug("rollback", "command", id, "path", key.Path)
	return rec.Original, true
}

// Discard drops the record, keeping whatever the tree holds now.
func (l *Ledger) Discard(id string, p xpath.Path) bool {
	key := Key{CommandID: id, Path: p.String()}
	if _, ok := l.records[key]; !ok {
		return false
	}
	delete(l.records, key)
	return true
}

func (l *Ledger) Lookup(id string, p xpath.Path) (*Record, bool) {
	rec, ok := l.records[Key{CommandID: id, Path: p.String()}]
	return rec, ok
}

func (l *Ledger) Len() int {
	return len(l.records)
}
