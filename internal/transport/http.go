package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	ncerr "hcd/internal/errors"
)

// HTTPBinder binds an HTTP(S) listener.  Requests to one of the
// configured URIs get an empty 200; everything else gets a 404.
//
// Config: host (string), port (int), secure (bool), cert/key (string),
// uris (comma-separated string, default "/"), user_agent (string,
// optional; requests with another agent get 404).
type HTTPBinder struct{}

// Bind listens synchronously so bind errors reach the caller, then
// serves in the background.
func (HTTPBinder) Bind(ctx context.Context, spec Spec) (Handle, error) {
	addr, err := spec.Address()
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.Wrap("listen", addr, err)
	}

	secure := spec.Bool("secure", false)
	if secure {
		conf, err := tlsConfig(spec, "h2", "http/1.1")
		if err != nil {
			ln.Close()
			return nil, err
		}
		ln = tls.NewListener(ln, conf)
	}

	srv := &http.Server{
		Handler:           uriHandler(spec),
		ReadHeaderTimeout: 10 * time.Second,
	}
	h := &httpHandle{srv: srv, addr: ln.Addr().String()}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && spec.Logger != nil {
			spec.Logger.Error("%s: %v", spec.Listener, err)
		}
	}()

	if spec.Logger != nil {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		spec.Logger.Verbose("%s: listening on %s (%s)", spec.Listener, h.addr, scheme)
	}
	return h, nil
}

func uriHandler(spec Spec) http.Handler {
	uris := map[string]bool{}
	for _, u := range strings.Split(spec.String("uris", "/"), ",") {
		if u = strings.TrimSpace(u); u != "" {
			uris[u] = true
		}
	}
	agent := spec.String("user_agent", "")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !uris[r.URL.Path] || (agent != "" && r.UserAgent() != agent) {
			http.NotFound(w, r)
			return
		}
		if spec.Logger != nil {
			spec.Logger.Verbose("%s: %s %s from %s", spec.Listener, r.Method, r.URL.Path, r.RemoteAddr)
		}
		w.WriteHeader(http.StatusOK)
	})
}

type httpHandle struct {
	srv  *http.Server
	addr string
	wg   sync.WaitGroup
	once sync.Once
	err  error
}

func (h *httpHandle) Addr() string { return h.addr }

func (h *httpHandle) Close() error {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.err = h.srv.Shutdown(ctx)
		h.wg.Wait()
	})
	return h.err
}
