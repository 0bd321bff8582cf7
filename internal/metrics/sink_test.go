package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type spySink struct {
	events []Event
}

func (s *spySink) Record(e Event) { s.events = append(s.events, e) }

func TestNopDiscardsEvents(t *testing.T) {
	var n Nop
	require.NotPanics(t, func() { n.Record(RowsScanned{EntityPath: "Item", RowsScanned: 3}) })
}

func TestMultiFansOutInOrder(t *testing.T) {
	a := &spySink{}
	b := &spySink{}
	m := Multi{a, b}

	ev := RowsScanned{EntityPath: "Item", RowsScanned: 7}
	m.Record(ev)

	require.Equal(t, []Event{ev}, a.events)
	require.Equal(t, []Event{ev}, b.events)
}

func TestSlogSinkHandlesEveryEventKind(t *testing.T) {
	sink := NewSlogSink(nil)
	require.NotPanics(t, func() {
		sink.Record(RowsScanned{EntityPath: "Item", RowsScanned: 1})
		sink.Record(PlanStep{EntityPath: "Item", Route: "primary_key", KeysOut: 1})
		sink.Record(CommitApplied{Kind: "save", Replayed: true, IndexOps: 2, DataOps: 1})
	})
}
