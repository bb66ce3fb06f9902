package transport

import (
	"context"
	"net"
	"sync"

	ncerr "hcd/internal/errors"
)

// TCPBinder binds a plain TCP listener.
//
// Config: host (string, default 0.0.0.0), port (int).
type TCPBinder struct{}

// Bind listens on host:port and accepts in the background.
func (TCPBinder) Bind(ctx context.Context, spec Spec) (Handle, error) {
	addr, err := spec.Address()
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.Wrap("listen", addr, err)
	}

	h := newStreamHandle(ln, spec)
	if spec.Logger != nil {
		spec.Logger.Verbose("%s: listening on %s (tcp)", spec.Listener, ln.Addr())
	}
	return h, nil
}

// streamHandle runs an accept loop over any net.Listener.  It is shared
// by the TCP and SSH binders.
type streamHandle struct {
	ln     net.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	err    error
}

func newStreamHandle(ln net.Listener, spec Spec) *streamHandle {
	return newStreamHandleFunc(ln, spec, spec.handle)
}

func newStreamHandleFunc(ln net.Listener, spec Spec, serve func(context.Context, net.Conn)) *streamHandle {
	// The accept loop outlives the bind context, so it gets its own.
	ctx, cancel := context.WithCancel(context.Background())
	h := &streamHandle{ln: ln, cancel: cancel}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
				default:
					if spec.Logger != nil {
						spec.Logger.Error("%s: %v", spec.Listener, ncerr.Wrap("accept", ln.Addr().String(), err))
					}
				}
				return
			}

			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				serve(ctx, conn)
			}()
		}
	}()
	return h
}

func (h *streamHandle) Addr() string { return h.ln.Addr().String() }

func (h *streamHandle) Close() error {
	h.once.Do(func() {
		h.cancel()
		h.err = h.ln.Close()
		h.wg.Wait()
	})
	return h.err
}
