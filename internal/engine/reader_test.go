package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Mschirtzinger/bugledger/internal/bug"
	"github.com/Mschirtzinger/bugledger/internal/ledger"
	"github.com/Mschirtzinger/bugledger/internal/ledger/ledgertest"
	"github.com/Mschirtzinger/bugledger/internal/session"
)

func bootstrap(t *testing.T, fake *ledgertest.Ledger) *session.Session {
	t.Helper()
	s, err := session.Bootstrap(context.Background(), fake.Dialer(), "fake://", discardLogger())
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedN(fake *ledgertest.Ledger, n int) {
	for i := 0; i < n; i++ {
		fake.Seed(ledger.Record{
			ID:              fmt.Sprintf("BUG-%d", i),
			Description:     fmt.Sprintf("bug number %d", i),
			CriticalityCode: int64(i % 3),
			IsResolved:      i%2 == 1,
		})
	}
}

func TestLoadAllOrder(t *testing.T) {
	for _, concurrency := range []int{0, 1, 4, 16} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			fake := ledgertest.New("0xA")
			seedN(fake, 25)
			s := bootstrap(t, fake)

			bugs, err := NewReader(3000000, concurrency).LoadAll(context.Background(), s)
			if err != nil {
				t.Fatalf("LoadAll failed: %v", err)
			}
			if len(bugs) != 25 {
				t.Fatalf("len = %d, want 25", len(bugs))
			}
			for i, b := range bugs {
				if b.Index != i {
					t.Errorf("bugs[%d].Index = %d", i, b.Index)
				}
				if want := fmt.Sprintf("BUG-%d", i); b.ID != want {
					t.Errorf("bugs[%d].ID = %q, want %q", i, b.ID, want)
				}
			}
			if got := fake.CountCalls("Record"); got != 25 {
				t.Errorf("Record calls = %d, want 25", got)
			}
		})
	}
}

func TestLoadAllDecodesRecords(t *testing.T) {
	fake := ledgertest.New("0xA")
	fake.Seed(
		ledger.Record{ID: "A", Description: "a", CriticalityCode: 0},
		ledger.Record{ID: "B", Description: "b", CriticalityCode: 2, IsResolved: true},
		ledger.Record{ID: "", Description: "", CriticalityCode: 7},
	)
	s := bootstrap(t, fake)

	got, err := NewReader(3000000, 1).LoadAll(context.Background(), s)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}

	want := []bug.Bug{
		{ID: "A", Description: "a", Criticality: bug.CriticalityLow, Index: 0},
		{ID: "B", Description: "b", Criticality: bug.CriticalityHigh, IsResolved: true, Index: 1},
		{ID: "", Description: "", Criticality: bug.CriticalityUnknown, Index: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadAll mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAllCountFailure(t *testing.T) {
	fake := ledgertest.New("0xA")
	fake.FailCount(errors.New("rpc down"))
	s := bootstrap(t, fake)

	_, err := NewReader(3000000, 1).LoadAll(context.Background(), s)

	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want *LoadError", err)
	}
	if le.Index != -1 {
		t.Errorf("Index = %d, want -1", le.Index)
	}
}

func TestLoadAllRecordFailure(t *testing.T) {
	for _, concurrency := range []int{1, 8} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			fake := ledgertest.New("0xA")
			seedN(fake, 10)
			fake.FailRecord(6, errors.New("timeout"))
			s := bootstrap(t, fake)

			bugs, err := NewReader(3000000, concurrency).LoadAll(context.Background(), s)

			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("error = %v, want *LoadError", err)
			}
			if le.Index != 6 {
				t.Errorf("Index = %d, want 6", le.Index)
			}
			if bugs != nil {
				t.Error("partial results should not be returned")
			}
		})
	}
}

func TestLoadAllNoIdentity(t *testing.T) {
	fake := ledgertest.New()
	seedN(fake, 3)
	s := bootstrap(t, fake)

	bugs, err := NewReader(3000000, 1).LoadAll(context.Background(), s)
	if err != nil || bugs != nil {
		t.Errorf("LoadAll = %v, %v; want nil, nil", bugs, err)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("calls = %d, want 0", len(fake.Calls()))
	}
}

func TestReadOne(t *testing.T) {
	fake := ledgertest.New("0xA")
	seedN(fake, 3)
	s := bootstrap(t, fake)
	r := NewReader(3000000, 1)

	b, err := r.ReadOne(context.Background(), s, 1, 300000)
	if err != nil {
		t.Fatalf("ReadOne failed: %v", err)
	}
	if b.ID != "BUG-1" || b.Index != 1 || !b.IsResolved {
		t.Errorf("ReadOne = %+v", b)
	}

	calls := fake.Calls()
	if got := calls[len(calls)-1].Opts.Gas; got != 300000 {
		t.Errorf("gas = %d, want 300000", got)
	}

	_, err = r.ReadOne(context.Background(), s, 9, 300000)
	var le *LoadError
	if !errors.As(err, &le) || le.Index != 9 {
		t.Errorf("ReadOne(9) error = %v, want *LoadError{Index: 9}", err)
	}
}
