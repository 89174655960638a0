package datarecording

import (
	"slices"

	"github.com/sarchlab/socbench/signal"
	"github.com/sarchlab/socbench/sim"
)

// ChangeTable is the table that holds signal changes.
const ChangeTable = "signal_change"

// ResultTable is the table that holds test results.
const ResultTable = "test_result"

// SessionTable is the table that holds one row per run of the tool.
const SessionTable = "session"

// ChangeEntry is one value change of a signal.
type ChangeEntry struct {
	TestName   string
	SignalName string
	TimeFS     uint64
	OldValue   string
	NewValue   string
}

// ResultEntry is the outcome of one test.
type ResultEntry struct {
	TestName    string
	Status      string
	SimTimeNS   float64
	RealTimeSec float64
	Seed        int64
	Message     string
}

// SessionEntry describes a run of the tool.
type SessionEntry struct {
	ID        string
	Toplevel  string
	StartedAt string
}

// EnsureTable creates the table unless the recorder already has it.
func EnsureTable(r DataRecorder, tableName string, sampleEntry any) {
	if slices.Contains(r.ListTables(), tableName) {
		return
	}

	r.CreateTable(tableName, sampleEntry)
}

// A ChangeRecorder is a hook that stores every value change of the signals
// it is attached to.
type ChangeRecorder struct {
	recorder DataRecorder
	testName string
}

// NewChangeRecorder creates a ChangeRecorder that tags its entries with the
// name of a test.
func NewChangeRecorder(r DataRecorder, testName string) *ChangeRecorder {
	EnsureTable(r, ChangeTable, ChangeEntry{})

	return &ChangeRecorder{
		recorder: r,
		testName: testName,
	}
}

// Func records a value change.
func (c *ChangeRecorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != signal.HookPosValueChange {
		return
	}

	change, ok := ctx.Item.(signal.Change)
	if !ok {
		return
	}

	c.recorder.InsertData(ChangeTable, ChangeEntry{
		TestName:   c.testName,
		SignalName: change.Signal.Name(),
		TimeFS:     uint64(change.Time),
		OldValue:   change.Old.String(),
		NewValue:   change.New.String(),
	})
}
