package transport

import (
	"context"
	"sync"

	quic "github.com/quic-go/quic-go"

	ncerr "hcd/internal/errors"
)

// defaultALPN is offered when the listener config names none.
const defaultALPN = "hcd-quic/1"

// QUICBinder binds a QUIC listener.  Accepted connections are logged
// and closed with application error 0.
//
// Config: host (string), port (int), alpn (string), cert/key (string).
type QUICBinder struct{}

// Bind opens the QUIC listener and accepts in the background.
func (QUICBinder) Bind(_ context.Context, spec Spec) (Handle, error) {
	addr, err := spec.Address()
	if err != nil {
		return nil, err
	}

	tlsConf, err := tlsConfig(spec, spec.String("alpn", defaultALPN))
	if err != nil {
		return nil, err
	}

	ln, err := quic.ListenAddr(addr, tlsConf, &quic.Config{})
	if err != nil {
		return nil, ncerr.Wrap("listen", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &quicHandle{ln: ln, cancel: cancel}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			conn, err := ln.Accept(ctx)
			if err != nil {
				return
			}
			if spec.Logger != nil {
				spec.Logger.Verbose("%s: quic connection from %s", spec.Listener, conn.RemoteAddr())
			}
			conn.CloseWithError(0, "") //nolint:errcheck
		}
	}()

	if spec.Logger != nil {
		spec.Logger.Verbose("%s: listening on %s (quic)", spec.Listener, ln.Addr())
	}
	return h, nil
}

type quicHandle struct {
	ln     *quic.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	err    error
}

func (h *quicHandle) Addr() string { return h.ln.Addr().String() }

func (h *quicHandle) Close() error {
	h.once.Do(func() {
		h.cancel()
		h.err = h.ln.Close()
		h.wg.Wait()
	})
	return h.err
}
