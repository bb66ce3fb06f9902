package transport

import (
	"context"
	"net"
	"sync"

	ncerr "hcd/internal/errors"
	"hcd/util"
)

// UDPBinder binds a UDP socket.  Datagrams are logged at debug level
// and dropped; there is no stream to hand to a ConnHandler.
//
// Config: host (string, default 0.0.0.0), port (int).
type UDPBinder struct{}

// Bind opens the packet socket and starts the read loop.
func (UDPBinder) Bind(ctx context.Context, spec Spec) (Handle, error) {
	addr, err := spec.Address()
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, ncerr.Wrap("listen", addr, err)
	}

	h := &packetHandle{pc: pc}
	h.wg.Add(1)
	go h.readLoop(spec)

	if spec.Logger != nil {
		spec.Logger.Verbose("%s: listening on %s (udp)", spec.Listener, pc.LocalAddr())
	}
	return h, nil
}

type packetHandle struct {
	pc   net.PacketConn
	wg   sync.WaitGroup
	once sync.Once
	err  error
}

func (h *packetHandle) readLoop(spec Spec) {
	defer h.wg.Done()

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	for {
		n, from, err := h.pc.ReadFrom(*buf)
		if err != nil {
			return
		}
		if spec.Logger != nil {
			spec.Logger.Debug("%s: %d bytes from %s", spec.Listener, n, from)
		}
	}
}

func (h *packetHandle) Addr() string { return h.pc.LocalAddr().String() }

func (h *packetHandle) Close() error {
	h.once.Do(func() {
		h.err = h.pc.Close()
		h.wg.Wait()
	})
	return h.err
}
