package proberec

// Row shapes for the two probe tables. Unsigned register values are
// widened to int64 for SQLite.

// WriteRow is one applied command write.
type WriteRow struct {
	Attempt      string
	Phase        int
	StreamOffset int64
	Op           int64
	Reg          int64
	Operand      int64
	Target       int64
	Strategy     string
	Confidence   int
	OldValue     int64
	NewValue     int64
}

// AttemptRow is the final outcome of one bring-up pass.
type AttemptRow struct {
	Attempt          string
	FinalState       string
	Phases           int
	Writes           int
	SkippedUnmapped  int
	SkippedUnknownOp int
	Primary          int64
	Secondary        int64
	FWStatus         int64
	DurationMS       int64
}

const (
	writeTable   = "register_write"
	attemptTable = "attempt"
)

// RecordWrite appends a write row, declaring the table on first use.
func (r *Recorder) RecordWrite(row WriteRow) error {
	if err := r.CreateTable(writeTable, WriteRow{}); err != nil {
		return err
	}
	row.Attempt = r.attempt
	return r.Insert(writeTable, row)
}

// RecordAttempt appends the attempt outcome row.
func (r *Recorder) RecordAttempt(row AttemptRow) error {
	if err := r.CreateTable(attemptTable, AttemptRow{}); err != nil {
		return err
	}
	row.Attempt = r.attempt
	return r.Insert(attemptTable, row)
}
