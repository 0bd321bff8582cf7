package metrics

import "log/slog"

// SlogSink renders every event as one structured log/slog line. It is
// opt-in (the engine's default sink is Nop), and it is the only place
// the module uses log/slog: the engine writes no log lines of its own
// outside the events it records through a Sink. No repo in the
// retrieval pack imports a structured logging library as a first-party
// dependency (spec.md's Design Notes §9 ambient-stack survey), so there
// is no ecosystem logger to ground a pulled-in dependency on.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink wraps logger, or slog.Default() when logger is nil.
func NewSlogSink(logger *slog.Logger) SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return SlogSink{Logger: logger}
}

func (s SlogSink) Record(e Event) {
	switch ev := e.(type) {
	case RowsScanned:
		s.Logger.Info("rows_scanned", "entity", ev.EntityPath, "rows", ev.RowsScanned)
	case PlanStep:
		s.Logger.Info("plan_step", "entity", ev.EntityPath, "route", ev.Route, "keys_out", ev.KeysOut)
	case CommitApplied:
		s.Logger.Info("commit_applied", "kind", ev.Kind, "replayed", ev.Replayed, "index_ops", ev.IndexOps, "data_ops", ev.DataOps)
	default:
		s.Logger.Warn("unrecognized metrics event", "type", e)
	}
}
