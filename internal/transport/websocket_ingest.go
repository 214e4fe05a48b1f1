package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"fleetmon-server/internal/model"
)

// WebSocketIngest accepts envelope-framed telemetry over a websocket
// endpoint as an alternative to the gRPC stream.
type WebSocketIngest struct {
	logger    *slog.Logger
	addr      string
	path      string
	token     string
	tlsConfig *tls.Config
	samples   chan<- model.NodeTelemetry
	inventory chan<- model.ContainerList
	handlers  sync.WaitGroup
}

func NewWebSocketIngest(
	addr, path, token string,
	tlsCfg *tls.Config,
	samples chan<- model.NodeTelemetry,
	inventory chan<- model.ContainerList,
	logger *slog.Logger,
) *WebSocketIngest {
	return &WebSocketIngest{
		logger:    logger,
		addr:      addr,
		path:      path,
		token:     token,
		tlsConfig: tlsCfg,
		samples:   samples,
		inventory: inventory,
	}
}

// Serve listens until ctx is cancelled. http.Server.Shutdown does not wait
// for hijacked websocket connections, so Serve must not return while a
// handler is still alive: the channels it feeds are closed right after, and
// a late frame would be a send on a closed channel. The handlers are cut
// loose through the base context and waited on before returning.
func (w *WebSocketIngest) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handle)
	srv := &http.Server{
		Addr:      w.addr,
		Handler:   mux,
		TLSConfig: w.tlsConfig,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	w.logger.Info("websocket ingest listening", "addr", w.addr, "path", w.path)
	var err error
	if w.tlsConfig != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if ctx.Err() != nil {
		// Shutdown drains connections that have not hijacked yet, so no
		// handler can start after it returns.
		<-shutdownDone
	}
	w.handlers.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve websocket ingest: %w", err)
	}
	return nil
}

func (w *WebSocketIngest) handle(wr http.ResponseWriter, r *http.Request) {
	w.handlers.Add(1)
	defer w.handlers.Done()

	if w.token != "" && r.Header.Get("Authorization") != "Bearer "+w.token {
		http.Error(wr, "invalid or missing bearer token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(wr, r, nil)
	if err != nil {
		w.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(10 << 20)
	defer conn.Close(websocket.StatusInternalError, "server closing")

	w.logger.Info("websocket stream connected", "remote", r.RemoteAddr)
	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			code := websocket.CloseStatus(err)
			if code == websocket.StatusNormalClosure || code == websocket.StatusGoingAway {
				w.logger.Info("websocket stream closed", "remote", r.RemoteAddr)
			} else {
				w.logger.Warn("websocket read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if err := w.dispatch(ctx, data); err != nil {
			w.logger.Warn("dropping undecodable message", "remote", r.RemoteAddr, "error", err)
		}
	}
}

func (w *WebSocketIngest) dispatch(ctx context.Context, data []byte) error {
	envelope, err := model.DecodeEnvelope(data)
	if err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	switch envelope.Type {
	case model.MessageTypeNodeTelemetry:
		var frame model.TelemetryFrame
		if err := json.Unmarshal(envelope.Payload, &frame); err != nil {
			return fmt.Errorf("decode telemetry payload: %w", err)
		}
		sample := frame.Sample
		if sample.NodeName == "" {
			sample.NodeName = envelope.NodeName
		}
		select {
		case w.samples <- sample:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case model.MessageTypeContainerInventory:
		var frame model.ContainerListFrame
		if err := json.Unmarshal(envelope.Payload, &frame); err != nil {
			return fmt.Errorf("decode inventory payload: %w", err)
		}
		list := frame.Inventory
		if list.NodeName == "" {
			list.NodeName = envelope.NodeName
		}
		select {
		case w.inventory <- list:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	default:
		return fmt.Errorf("unknown envelope type %q", envelope.Type)
	}
}
