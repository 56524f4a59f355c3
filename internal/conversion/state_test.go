package conversion

import (
	"strings"
	"testing"
)

func testSpec() JobSpec {
	return JobSpec{SourceType: SourceOracle, Schema: "HR", ObjectType: ObjectFullSchema}
}

func snapshotAt(tx string, pct float64) *StatusSnapshot {
	return &StatusSnapshot{
		TransactionID: tx,
		Schema:        "HR",
		Overall:       Overall{Done: int(pct), Total: 100, Percentage: pct},
		DoneCounts: map[string]ObjectTypeCount{
			"table": {Type: "table", SuccessCount: int(pct), Total: 100, Percentage: pct},
		},
	}
}

func TestNewJobView(t *testing.T) {
	spec := JobSpec{SourceType: SourceOracle, Schema: "HR", ObjectType: ObjectTable, Targets: []string{"EMP"}}
	s := NewJobView(spec, "tx-1")
	if !s.Active || s.Phase != PhaseInitializing {
		t.Fatalf("got Active=%v Phase=%q, want active initializing", s.Active, s.Phase)
	}
	spec.Targets[0] = "CHANGED"
	if s.Spec.Targets[0] != "EMP" {
		t.Error("view state must not share the caller's targets slice")
	}
}

func TestReconcile_EventAppendsAndAdvancesPhase(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	ev := Classify("🪟 Converting views")
	next := Reconcile(s, &ev, nil)

	if len(next.Logs) != 1 || next.Logs[0].Message != "🪟 Converting views" {
		t.Fatalf("Logs = %+v", next.Logs)
	}
	if next.Phase != PhaseViews || !next.Active {
		t.Errorf("Phase = %q Active = %v, want views/active", next.Phase, next.Active)
	}
	if len(s.Logs) != 0 || s.Phase != PhaseInitializing {
		t.Error("prior state was mutated")
	}
}

func TestReconcile_DoesNotShareLogBacking(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	a := Classify("one")
	s = Reconcile(s, &a, nil)

	b, c := Classify("two"), Classify("three")
	left := Reconcile(s, &b, nil)
	right := Reconcile(s, &c, nil)

	if left.Logs[1].Message != "two" || right.Logs[1].Message != "three" {
		t.Errorf("branches interfered: left=%q right=%q", left.Logs[1].Message, right.Logs[1].Message)
	}
}

func TestReconcile_CompletionLine(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	ev := Classify("✅ Conversion completed: 1,234 rows")
	next := Reconcile(s, &ev, nil)

	if next.Active {
		t.Error("completion must deactivate the job")
	}
	if next.Phase != PhaseCompleted {
		t.Errorf("Phase = %q, want completed", next.Phase)
	}
	if next.Rows != 1234 {
		t.Errorf("Rows = %d, want 1234", next.Rows)
	}
	if next.DisplayPercentage() != 100 {
		t.Errorf("DisplayPercentage = %v, want 100", next.DisplayPercentage())
	}
}

func TestReconcile_RowsAccumulateThenTotalWins(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	for _, l := range []string{"✅ A: 100 rows in 1s", "✅ B: 50 rows in 1s"} {
		ev := Classify(l)
		s = Reconcile(s, &ev, nil)
	}
	if s.Rows != 150 || s.TablesDone != 2 {
		t.Fatalf("Rows = %d TablesDone = %d, want 150 and 2", s.Rows, s.TablesDone)
	}
	ev := Classify("✅ Conversion completed: 160 rows")
	s = Reconcile(s, &ev, nil)
	if s.Rows != 160 {
		t.Errorf("Rows = %d, want 160", s.Rows)
	}
}

func TestReconcile_SnapshotAtHundredCompletes(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	next := Reconcile(s, nil, snapshotAt("tx", 100))
	if next.Active || next.Phase != PhaseCompleted {
		t.Errorf("Active = %v Phase = %q, want inactive completed", next.Active, next.Phase)
	}
}

func TestReconcile_SnapshotReplacesWholesale(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	first := snapshotAt("tx", 20)
	first.DoneCounts["view"] = ObjectTypeCount{Type: "view", Total: 4}
	s = Reconcile(s, nil, first)

	second := snapshotAt("tx", 30)
	s = Reconcile(s, nil, second)

	if _, ok := s.LatestSnapshot.DoneCounts["view"]; ok {
		t.Error("snapshot fields were merged instead of replaced")
	}
	if s.LatestSnapshot.Overall.Percentage != 30 {
		t.Errorf("Percentage = %v, want 30", s.LatestSnapshot.Overall.Percentage)
	}
}

func TestReconcile_DiscardsForeignAndRegressingSnapshots(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	s = Reconcile(s, nil, snapshotAt("tx", 40))

	if got := Reconcile(s, nil, snapshotAt("other", 90)); got.LatestSnapshot.Overall.Percentage != 40 {
		t.Errorf("foreign snapshot applied: %v", got.LatestSnapshot.Overall.Percentage)
	}
	if got := Reconcile(s, nil, snapshotAt("tx", 10)); got.LatestSnapshot.Overall.Percentage != 40 {
		t.Errorf("regressing snapshot applied: %v", got.LatestSnapshot.Overall.Percentage)
	}
}

func TestReconcile_SnapshotPercentageWins(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	ev := Classify("Progress: 80% (8/10)")
	s = Reconcile(s, &ev, nil)
	if s.DisplayPercentage() != 80 {
		t.Fatalf("DisplayPercentage = %v, want 80 before any snapshot", s.DisplayPercentage())
	}
	s = Reconcile(s, nil, snapshotAt("tx", 55))
	if s.DisplayPercentage() != 55 {
		t.Errorf("DisplayPercentage = %v, want snapshot value 55", s.DisplayPercentage())
	}
}

func TestReconcile_DisconnectAfterLines(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	for _, l := range []string{"🚀 Starting", "📦 Converting tables", "✅ A: 1 rows in 1s"} {
		ev := Classify(l)
		s = Reconcile(s, &ev, nil)
	}
	dc := Disconnected(s.Logs[0].At)
	s = Reconcile(s, &dc, nil)

	if len(s.Logs) != 4 {
		t.Fatalf("len(Logs) = %d, want 4", len(s.Logs))
	}
	last := s.Logs[3]
	if last.Severity != SeverityError || last.Message != DisconnectedMessage {
		t.Errorf("last log = %+v", last)
	}
	if s.Active || s.Phase != PhaseDisconnected {
		t.Errorf("Active = %v Phase = %q, want inactive disconnected", s.Active, s.Phase)
	}
	term := s.Terminal()
	if term == nil || !term.Failed() {
		t.Errorf("Terminal() = %+v, want failed outcome", term)
	}
}

func TestReconcile_TerminalIsSticky(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	done := Classify("✅ Full schema conversion completed")
	s = Reconcile(s, &done, nil)

	late := Classify("📐 Converting indexes")
	s = Reconcile(s, &late, nil)
	dc := Disconnected(done.At)
	s = Reconcile(s, &dc, nil)
	s = Reconcile(s, nil, snapshotAt("tx", 100))

	if s.Active {
		t.Error("inactive job was reactivated")
	}
	if s.Phase != PhaseCompleted {
		t.Errorf("Phase = %q, want completed to stick", s.Phase)
	}
	if len(s.Logs) != 3 {
		t.Errorf("late lines must still be logged, got %d", len(s.Logs))
	}
}

func TestCancel(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	ev := Classify("🪟 Converting views")
	s = Reconcile(s, &ev, nil)

	c := Cancel(s)
	if c.Active || !c.Cancelled || c.Phase != PhaseViews {
		t.Errorf("Cancel() = Active %v Cancelled %v Phase %q", c.Active, c.Cancelled, c.Phase)
	}
	if !s.Active {
		t.Error("Cancel mutated its input")
	}
	if term := c.Terminal(); term == nil || term.Failed() || !strings.Contains(term.Summary, "detached") {
		t.Errorf("Terminal() = %+v", term)
	}

	done := Reconcile(NewJobView(testSpec(), "tx"), nil, snapshotAt("tx", 100))
	if Cancel(done).Cancelled {
		t.Error("cancelling a finished job must be a no-op")
	}
}

func TestTerminal_CompletedSummary(t *testing.T) {
	s := NewJobView(testSpec(), "tx")
	snap := snapshotAt("tx", 100)
	snap.DoneCounts["view"] = ObjectTypeCount{Type: "view", Total: 3, SuccessCount: 1, ErrorCount: 2}
	ev := Classify("✅ Conversion completed: 12,345 rows")
	s = Reconcile(s, &ev, snap)

	term := s.Terminal()
	if term == nil {
		t.Fatal("expected terminal state")
	}
	if term.Phase != PhaseCompleted {
		t.Errorf("Phase = %q", term.Phase)
	}
	for _, want := range []string{"12,345 rows", "2 objects failed"} {
		if !strings.Contains(term.Summary, want) {
			t.Errorf("Summary %q missing %q", term.Summary, want)
		}
	}
	if NewJobView(testSpec(), "tx").Terminal() != nil {
		t.Error("active job must have no terminal state")
	}
}
