package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "hcd/internal/errors"
)

// sshHandshakeTimeout bounds how long an unauthenticated peer may hold
// a connection open.
const sshHandshakeTimeout = 10 * time.Second

// SSHBinder binds an SSH server listener.  Peers that authenticate are
// logged; channel requests are rejected until an agent handler is
// attached by the transport layer.
//
// Config: host (string), port (int), host_key (private key path,
// optional; an ephemeral ed25519 key is generated when empty),
// password (string, optional; no client auth when empty).
type SSHBinder struct{}

// Bind builds the server config, listens, and accepts in the background.
func (SSHBinder) Bind(ctx context.Context, spec Spec) (Handle, error) {
	addr, err := spec.Address()
	if err != nil {
		return nil, err
	}

	cfg, err := serverConfig(spec)
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.Wrap("listen", addr, err)
	}

	h := newStreamHandleFunc(ln, spec, func(ctx context.Context, conn net.Conn) {
		serveSSH(ctx, spec, cfg, conn)
	})
	if spec.Logger != nil {
		spec.Logger.Verbose("%s: listening on %s (ssh)", spec.Listener, ln.Addr())
	}
	return h, nil
}

func serverConfig(spec Spec) (*ssh.ServerConfig, error) {
	cfg := &ssh.ServerConfig{}

	if pass := spec.String("password", ""); pass != "" {
		cfg.PasswordCallback = func(_ ssh.ConnMetadata, given []byte) (*ssh.Permissions, error) {
			if subtle.ConstantTimeCompare(given, []byte(pass)) == 1 {
				return nil, nil
			}
			return nil, ncerr.New("password rejected")
		}
	} else {
		cfg.NoClientAuth = true
	}

	signer, err := hostSigner(spec.String("host_key", ""))
	if err != nil {
		return nil, err
	}
	cfg.AddHostKey(signer)
	return cfg, nil
}

func hostSigner(path string) (ssh.Signer, error) {
	if path == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating host key: %w", err)
		}
		return ssh.NewSignerFromKey(priv)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading host key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing host key %s: %w", path, err)
	}
	return signer, nil
}

func serveSSH(ctx context.Context, spec Spec, cfg *ssh.ServerConfig, conn net.Conn) {
	conn.SetDeadline(time.Now().Add(sshHandshakeTimeout)) //nolint:errcheck
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		if spec.Logger != nil {
			spec.Logger.Verbose("%s: %v", spec.Listener, ncerr.Wrap("handshake", conn.RemoteAddr().String(), err))
		}
		conn.Close()
		return
	}
	conn.SetDeadline(time.Time{}) //nolint:errcheck
	defer sconn.Close()

	if spec.Logger != nil {
		spec.Logger.Verbose("%s: ssh session from %s (user %q)", spec.Listener, sconn.RemoteAddr(), sconn.User())
	}

	go ssh.DiscardRequests(reqs)
	go func() {
		<-ctx.Done()
		sconn.Close()
	}()

	for nc := range chans {
		nc.Reject(ssh.Prohibited, "no handler for channel type "+nc.ChannelType()) //nolint:errcheck
	}
}
