// Package session bootstraps a connection to the bug ledger.
//
// A Session is created once at startup and never refreshed. It carries the
// connection handle and the endpoint's identities; the first identity is the
// acting identity for every call. A session without identities is valid but
// inert: reads are skipped and commands are unavailable.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Mschirtzinger/bugledger/internal/ledger"
)

// ConnectionError is returned when the ledger endpoint cannot be reached.
// It is fatal to the engine; there is no retry policy.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to ledger at %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// Session is the connection handle plus the ordered identity list.
type Session struct {
	conn     ledger.Conn
	endpoint string
	logger   *log.Logger

	once       sync.Once
	identities []ledger.Identity
	listErr    error
}

// Open dials endpoint. It does not list identities; call ListIdentities or
// use Bootstrap.
func Open(ctx context.Context, dialer ledger.Dialer, endpoint string, logger *log.Logger) (*Session, error) {
	if dialer == nil {
		return nil, fmt.Errorf("dialer cannot be nil")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	conn, err := dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}

	logger.Printf("Opened ledger session: %s", endpoint)
	return &Session{
		conn:     conn,
		endpoint: endpoint,
		logger:   logger,
	}, nil
}

// Bootstrap opens a session and lists its identities.
//
// Example:
//
//	s, err := session.Bootstrap(ctx, sqlledger.Dialer{}, ".bugledger/ledger.db", nil)
//	if err != nil {
//	    return err // *session.ConnectionError
//	}
//	defer s.Close()
func Bootstrap(ctx context.Context, dialer ledger.Dialer, endpoint string, logger *log.Logger) (*Session, error) {
	s, err := Open(ctx, dialer, endpoint, logger)
	if err != nil {
		return nil, err
	}
	if _, err := s.ListIdentities(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// ListIdentities returns the endpoint's identities in order.
//
// The list is fetched on the first call and cached for the session's
// lifetime; later calls return the same result.
func (s *Session) ListIdentities(ctx context.Context) ([]ledger.Identity, error) {
	s.once.Do(func() {
		ids, err := s.conn.Identities(ctx)
		if err != nil {
			s.listErr = &ConnectionError{Endpoint: s.endpoint, Err: err}
			return
		}
		s.identities = ids
		if len(ids) == 0 {
			s.logger.Printf("Warning: %s offers no identities; commands are unavailable", s.endpoint)
		} else {
			s.logger.Printf("Acting identity: %s (%d available)", ids[0], len(ids))
		}
	})
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]ledger.Identity(nil), s.identities...), nil
}

// Acting returns the first identity. The second result is false when the
// identities have not been listed or the endpoint offers none.
func (s *Session) Acting() (ledger.Identity, bool) {
	if len(s.identities) == 0 {
		return "", false
	}
	return s.identities[0], true
}

// Ledger returns the connection handle.
func (s *Session) Ledger() ledger.Conn {
	return s.conn
}

// Endpoint returns the endpoint the session was opened against.
func (s *Session) Endpoint() string {
	return s.endpoint
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
