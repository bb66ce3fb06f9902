// Package session tracks the connections accepted by running listeners.
//
// The teamserver core does not speak any agent protocol; a Tracker is
// the default connection handler.  It records each connection against
// its listener, drains it until the peer hangs up, the connection goes
// idle, or the listener stops, and then forgets it.
package session

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"hcd/util"
)

// Session is one accepted connection.
type Session struct {
	ID       uint64    `json:"id"`
	Listener string    `json:"listener"`
	Remote   string    `json:"remote"`
	Opened   time.Time `json:"opened"`
	BytesIn  int64     `json:"bytes_in"`
}

// Tracker records live sessions per listener.
type Tracker struct {
	logger *util.Logger
	idle   time.Duration

	mu     sync.Mutex
	nextID uint64
	open   map[uint64]*Session
}

// NewTracker returns a tracker that drops connections idle for longer
// than idle.  Zero disables the idle timeout.
func NewTracker(logger *util.Logger, idle time.Duration) *Tracker {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Tracker{logger: logger, idle: idle, open: make(map[uint64]*Session)}
}

// Handle is a transport.ConnHandler.  It blocks until the session ends
// and always closes conn.
func (t *Tracker) Handle(ctx context.Context, listener string, conn net.Conn) {
	s := t.add(listener, conn.RemoteAddr().String())
	t.logger.Verbose("%s: session %d from %s", listener, s.ID, s.Remote)

	stop := context.AfterFunc(ctx, func() { conn.Close() }) //nolint:errcheck
	defer stop()

	n, err := t.drain(conn, s)
	conn.Close() //nolint:errcheck

	t.remove(s.ID)
	switch {
	case err == nil, ctx.Err() != nil:
		t.logger.Verbose("%s: session %d closed (%s in)", listener, s.ID, util.FormatBytes(n))
	case errors.Is(err, os.ErrDeadlineExceeded):
		t.logger.Verbose("%s: session %d idle, dropped", listener, s.ID)
	default:
		t.logger.Debug("%s: session %d: %v", listener, s.ID, err)
	}
}

func (t *Tracker) drain(conn net.Conn, s *Session) (int64, error) {
	buf := util.GetBuf()
	defer util.PutBuf(buf)

	var total int64
	for {
		if t.idle > 0 {
			conn.SetReadDeadline(time.Now().Add(t.idle)) //nolint:errcheck
		}
		n, err := conn.Read(*buf)
		total += int64(n)
		if n > 0 {
			t.mu.Lock()
			s.BytesIn = total
			t.mu.Unlock()
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}

func (t *Tracker) add(listener, remote string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	s := &Session{ID: t.nextID, Listener: listener, Remote: remote, Opened: time.Now()}
	t.open[s.ID] = s
	return s
}

func (t *Tracker) remove(id uint64) {
	t.mu.Lock()
	delete(t.open, id)
	t.mu.Unlock()
}

// Sessions returns the live sessions of listener, oldest first.  An
// empty listener returns every live session.
func (t *Tracker) Sessions(listener string) []Session {
	t.mu.Lock()
	out := make([]Session, 0, len(t.open))
	for _, s := range t.open {
		if listener == "" || s.Listener == listener {
			out = append(out, *s)
		}
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live sessions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}
