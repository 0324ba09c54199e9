package bug

import "time"

// Bug is the projected form of one ledger record.
type Bug struct {
	// ID is user supplied. The ledger does not enforce uniqueness.
	ID          string      `json:"id" yaml:"id"`
	Description string      `json:"description" yaml:"description"`
	Criticality Criticality `json:"criticality" yaml:"criticality"`
	IsResolved  bool        `json:"is_resolved" yaml:"is_resolved"`

	// Index is the record's position in the ledger when it was loaded.
	Index int `json:"index" yaml:"index"`
}

// Projection is a snapshot of every ledger record, in ledger order.
//
// Bugs[i].Index == i always holds. A Projection is never modified after it
// is published; reconciliation builds a new one.
type Projection struct {
	Bugs []Bug `json:"bugs" yaml:"bugs"`

	// Revision increases by one on every successful reconciliation.
	// Zero means nothing has been loaded yet.
	Revision uint64    `json:"revision" yaml:"revision"`
	LoadedAt time.Time `json:"loaded_at" yaml:"loaded_at"`
}

// Len returns the number of records in the snapshot.
func (p Projection) Len() int {
	return len(p.Bugs)
}

// At returns the bug at index i.
func (p Projection) At(i int) (Bug, bool) {
	if i < 0 || i >= len(p.Bugs) {
		return Bug{}, false
	}
	return p.Bugs[i], true
}

// Draft holds the form fields for a bug that has not been submitted yet.
type Draft struct {
	ID          string
	Description string
	Criticality string
}

// NewDraft returns an empty draft with the default criticality selected.
func NewDraft() *Draft {
	return &Draft{Criticality: CriticalityLow.String()}
}

// Reset clears the draft back to its initial state.
func (d *Draft) Reset() {
	*d = Draft{Criticality: CriticalityLow.String()}
}
