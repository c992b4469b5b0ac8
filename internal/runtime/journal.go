package runtime

// Record is one observed effect firing, stamped with a logical sequence
// number. Records are written in the order callbacks actually execute,
// so a journal of an ordered effect reads back in program order.
type Record struct {
	Seq       int64
	Effect    string
	Context   string
	Program   string
	Callback  string
	Args      []float64
	IRVersion string
}

// Sink receives effect-firing records. The sqlite journal implements
// this; tests use in-memory sinks. A nil sink disables recording.
//
// Sinks are observational only: they are invoked after the callback has
// run and play no part in ordering. Implementations must be safe for
// concurrent use, since unordered effects may fire from several
// replication workers at once.
type Sink interface {
	Record(rec Record) error
}
