package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Mschirtzinger/bugledger/internal/bug"
	"github.com/Mschirtzinger/bugledger/internal/ledger"
	"github.com/Mschirtzinger/bugledger/internal/session"
)

// Reader pulls ledger records and maps them into bugs.
type Reader struct {
	gas         uint64
	concurrency int
}

// NewReader creates a Reader that sends every read with the given gas
// ceiling. With concurrency above 1, record reads fan out; results stay in
// ledger order regardless.
func NewReader(gas uint64, concurrency int) *Reader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reader{gas: gas, concurrency: concurrency}
}

// LoadAll reads every record from the ledger.
//
// It is all or nothing: the first failed read aborts the load and returns a
// *LoadError carrying the failed index. Without an acting identity LoadAll
// is a no-op and returns nil, nil.
func (r *Reader) LoadAll(ctx context.Context, s *session.Session) ([]bug.Bug, error) {
	from, ok := s.Acting()
	if !ok {
		return nil, nil
	}
	opts := ledger.CallOpts{From: from, Gas: r.gas}
	l := s.Ledger()

	count, err := l.RecordCount(ctx, opts)
	if err != nil {
		return nil, &LoadError{Index: -1, Err: err}
	}

	bugs := make([]bug.Bug, count)

	if r.concurrency == 1 {
		for i := 0; i < count; i++ {
			rec, err := l.Record(ctx, opts, i)
			if err != nil {
				return nil, &LoadError{Index: i, Err: err}
			}
			bugs[i] = Project(rec, i)
		}
		return bugs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			rec, err := l.Record(gctx, opts, i)
			if err != nil {
				return &LoadError{Index: i, Err: err}
			}
			bugs[i] = Project(rec, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bugs, nil
}

// ReadOne reads a single record with its own gas ceiling.
func (r *Reader) ReadOne(ctx context.Context, s *session.Session, index int, gas uint64) (bug.Bug, error) {
	from, ok := s.Acting()
	if !ok {
		return bug.Bug{}, ErrNoIdentity
	}

	rec, err := s.Ledger().Record(ctx, ledger.CallOpts{From: from, Gas: gas}, index)
	if err != nil {
		return bug.Bug{}, &LoadError{Index: index, Err: err}
	}
	return Project(rec, index), nil
}

// Project maps a raw record at position index into a Bug.
func Project(rec ledger.Record, index int) bug.Bug {
	return bug.Bug{
		ID:          rec.ID,
		Description: rec.Description,
		Criticality: bug.Decode(rec.CriticalityCode),
		IsResolved:  rec.IsResolved,
		Index:       index,
	}
}
