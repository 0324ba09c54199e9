// Package bug defines the display model for bug records held on the ledger.
//
// The ledger is the source of truth. Everything in this package is a
// read-only, point-in-time copy of what the ledger returned during the last
// reconciliation:
//
//	Ledger record {id, description, criticalityCode, isResolved}
//	     ↓ Decode(criticalityCode)
//	Bug {ID, Description, Criticality, IsResolved, Index}
//	     ↓ collected in ledger order
//	Projection {Bugs, Revision, LoadedAt}
//
// # Criticality
//
// Criticality is a closed enumeration. The ledger stores it as an integer
// code:
//
//	Low    → 0
//	Medium → 1
//	High   → 2
//
// Decoding never fails. Codes this client did not write decode to
// CriticalityUnknown and are kept as a distinct display state.
//
// Encoding a label outside the closed set yields the InvalidCode sentinel
// (-1). Callers must treat the sentinel as a validation failure and never
// submit it.
//
// # Positional addressing
//
// Bug.Index is the record's position in the ledger at load time and the only
// handle commands can use. Deleting a record shifts every later record down
// by one, so a Projection is always rebuilt wholesale, never patched.
package bug
