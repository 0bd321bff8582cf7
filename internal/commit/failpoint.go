package commit

// Label names a checkpoint between two steps of the commit protocol.
// Tests request a forced failure at one of these to exercise recovery
// (spec.md §6's fail_next_checkpoint/fail_checkpoint_label hook); they
// have no effect outside test builds since nothing but tests ever
// installs a FailPoint on a Guard.
type Label string

const (
	LabelBeginCommit  Label = "begin_commit"
	LabelIndexWritten Label = "mark_index_written"
	LabelDataWritten  Label = "mark_data_written"
	LabelCleared      Label = "clear"
)

// Injected is returned by a checkpoint a FailPoint was told to trip,
// standing in for the crash a real forced-failure test simulates.
type Injected struct {
	Label Label
}

func (e *Injected) Error() string {
	return "commit: injected failure at checkpoint " + string(e.Label)
}

// FailPoint is a deliberately simple, single-shot failure injector: it
// has no effect until armed, and disarms itself the moment it fires so
// a test's next commit (e.g. the recovery sweep's own re-apply) runs
// clean.
type FailPoint struct {
	nextAny bool
	label   Label
	armed   bool
}

// FailNextCheckpoint arms the injector to fail at whichever checkpoint
// fires next, regardless of label.
func (f *FailPoint) FailNextCheckpoint() { f.nextAny = true }

// FailCheckpointLabel arms the injector to fail only at label.
func (f *FailPoint) FailCheckpointLabel(label Label) {
	f.label = label
	f.armed = true
}

// check reports whether the checkpoint named label should fail,
// disarming itself if so.
func (f *FailPoint) check(label Label) error {
	if f == nil {
		return nil
	}
	if f.nextAny {
		f.nextAny = false
		return &Injected{Label: label}
	}
	if f.armed && f.label == label {
		f.armed = false
		return &Injected{Label: label}
	}
	return nil
}
