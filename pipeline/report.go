package pipeline

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Status is the outcome of one table.
type Status int

const (
	// Loaded means the source opened and its rows went through the pipeline.
	Loaded Status = iota
	// Empty means the source opened but held no data rows.
	Empty
	// SourceFailed means the source could not be opened or read to the end.
	// Nothing from it is loaded.
	SourceFailed
	// Aborted means the run stopped while this table was in progress.
	Aborted
)

func (s Status) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Empty:
		return "empty"
	case SourceFailed:
		return "source-failed"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// TableResult records what happened to one entity's table.
type TableResult struct {
	Entity      string
	Table       string
	Source      string
	Fingerprint string // xxh3 of the source file, hex
	Status      Status
	Read        int   // data rows seen in the source
	Rejected    int   // validator rejections
	Inserted    int   // committed rows
	NextID      int64 // next identity the table's sequence hands out
	Err         error
}

// Report summarises a run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Tables   []TableResult
}

// Totals sums the per-table counters.
func (r *Report) Totals() (read, rejected, inserted int) {
	for _, t := range r.Tables {
		read += t.Read
		rejected += t.Rejected
		inserted += t.Inserted
	}
	return read, rejected, inserted
}

// Table returns the result for an entity.
func (r *Report) Table(entity string) (TableResult, bool) {
	for _, t := range r.Tables {
		if t.Entity == entity {
			return t, true
		}
	}
	return TableResult{}, false
}

// Print writes a per-table summary.
func (r *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s (%s)\n", r.RunID, r.Finished.Sub(r.Started).Round(time.Millisecond))
	fmt.Fprintln(tw, "ENTITY\tTABLE\tSTATUS\tREAD\tREJECTED\tINSERTED\tNEXT ID\tSOURCE")
	for _, t := range r.Tables {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			t.Entity, t.Table, t.Status, t.Read, t.Rejected, t.Inserted, t.NextID, t.Source)
	}
	read, rejected, inserted := r.Totals()
	fmt.Fprintf(tw, "total\t\t\t%d\t%d\t%d\t\t\n", read, rejected, inserted)
	for _, t := range r.Tables {
		if t.Err != nil {
			fmt.Fprintf(tw, "%s: %v\n", t.Entity, t.Err)
		}
	}
	return tw.Flush()
}
