package asyncstate

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func fixedTable() (*Table, time.Time) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tbl := New()
	tbl.now = func() time.Time { return at }
	return tbl, at
}

func TestTransitions(t *testing.T) {
	tbl, at := fixedTable()
	boom := errors.New("boom")

	tbl.Start("/a", "c1")
	st, ok := tbl.Get("/a")
	if !ok {
		t.Fatal("missing state after Start")
	}
	want := State{Status: Loading, Timestamp: at, RequestID: "c1"}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("after Start (-want +got):\n%s", diff)
	}
	if !tbl.IsPending("c1") {
		t.Error("c1 should be pending")
	}

	done := at.Add(time.Second)
	tbl.Succeed("/a", "c1", done)
	st, _ = tbl.Get("/a")
	want = State{Status: Success, Timestamp: done, RequestID: "c1"}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("after Succeed (-want +got):\n%s", diff)
	}
	if tbl.IsPending("c1") {
		t.Error("c1 should not be pending")
	}

	tbl.Start("/b", "c2")
	tbl.Fail("/b", "c2", boom)
	st, _ = tbl.Get("/b")
	want = State{Status: Error, Err: boom, Timestamp: at, RequestID: "c2"}
	if diff := cmp.Diff(want, st, cmpopts.EquateErrors()); diff != "" {
		t.Errorf("after Fail (-want +got):\n%s", diff)
	}

	tbl.Start("/c", "c3")
	tbl.Cancel("/c", "c3")
	st, _ = tbl.Get("/c")
	if st.Status != Idle || st.RequestID != "c3" {
		t.Errorf("after Cancel got %+v", st)
	}
	if ids := tbl.PendingIDs(); len(ids) != 0 {
		t.Errorf("pending ids left: %v", ids)
	}
	if diff := cmp.Diff([]string{"/a", "/b", "/c"}, tbl.Paths()); diff != "" {
		t.Errorf("Paths (-want +got):\n%s", diff)
	}
}

func TestLatestWriterWins(t *testing.T) {
	tbl, _ := fixedTable()
	tbl.Start("/a", "old")
	tbl.Start("/a", "new")
	tbl.Succeed("/a", "old", time.Now())
	st, _ := tbl.Get("/a")
	if st.RequestID != "old" || st.Status != Success {
		t.Errorf("transitions apply in arrival order, got %+v", st)
	}
	if !tbl.IsPending("new") {
		t.Error("new should still be pending")
	}
}

func TestReset(t *testing.T) {
	tbl, _ := fixedTable()
	tbl.Reset("/untracked")
	if _, ok := tbl.Get("/untracked"); ok {
		t.Error("Reset should not create state")
	}
	tbl.Start("/a", "c1")
	tbl.Fail("/a", "c1", errors.New("x"))
	tbl.Reset("/a")
	st, _ := tbl.Get("/a")
	if st.Status != Idle || st.Err != nil || st.RequestID != "c1" {
		t.Errorf("after Reset got %+v", st)
	}
}

func TestStatusString(t *testing.T) {
	if Loading.String() != "loading" || Status(9).String() != "Status(9)" {
		t.Error("unexpected status names")
	}
}
