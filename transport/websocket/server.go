package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"nhooyr.io/websocket"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-hub/internal/usecase"
)

const (
	pingInterval    = 20 * time.Second
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second

	maxCloseReason = 123
)

type dispatcher interface {
	Connect() *usecase.Session
}

type Server struct {
	logger     *slog.Logger
	dispatcher dispatcher

	pingInterval time.Duration
	sessions     sync.WaitGroup
}

func New(logger *slog.Logger, dispatcher dispatcher) *Server {
	return &Server{
		logger:     logger.With("component", "websocket"),
		dispatcher: dispatcher,

		pingInterval: pingInterval,
	}
}

func (that *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws", that.ServeWS)

	return router
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return that.Serve(ctx, listener)
}

// Serve accepts connections from listener. It returns once ctx is done and every session has been closed.
func (that *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	shutdown := make(chan struct{})
	go func() {
		defer close(shutdown)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	// hijacked connections are not tracked by Shutdown
	<-shutdown
	that.sessions.Wait()

	return nil
}

// ServeWS upgrades the request and runs one client session until the connection ends.
func (that *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	that.sessions.Add(1)
	defer that.sessions.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		that.logger.Error("failed to accept websocket", "error", err)
		return
	}

	conn.SetReadLimit(protocol.MaxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := that.dispatcher.Connect()
	log := that.logger.With("session", session.ID())
	log.Info("WebSocket connection established", "remote", r.RemoteAddr)

	written := make(chan struct{})
	go func() {
		defer close(written)
		defer cancel()
		that.writeLoop(ctx, conn, session.Outbox(), log)
	}()

	status, reason := that.readLoop(ctx, conn, session, log)

	// closing the session lets the writer flush what is already queued
	session.Close(context.WithoutCancel(ctx))
	<-written

	_ = conn.Close(status, reason)

	log.Info("WebSocket connection closed", "status", status)
}

func (that *Server) readLoop(ctx context.Context, conn *websocket.Conn, session *usecase.Session, log *slog.Logger) (websocket.StatusCode, string) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
				log.Debug("read failed", "error", err)
			}

			return websocket.StatusNormalClosure, ""
		}

		if typ != websocket.MessageText {
			err = session.Reject(fmt.Errorf("%w: only text messages are accepted", apperror.ErrProtocolViolation))
		} else if req, decodeErr := protocol.DecodeRequest(data); decodeErr != nil {
			err = session.Reject(decodeErr)
		} else {
			err = session.Handle(ctx, req)
		}

		if err != nil {
			log.Warn("closing connection", "error", err)
			return closeFrame(err)
		}
	}
}

// closeFrame picks the close status for a session error. Close reasons are limited to 123 bytes.
func closeFrame(err error) (websocket.StatusCode, string) {
	status := websocket.StatusGoingAway
	if errors.Is(err, apperror.ErrTooManyViolations) {
		status = websocket.StatusPolicyViolation
	}

	reason := err.Error()
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}

	return status, reason
}

// writeLoop sends queued events in order and keeps the connection alive with pings.
func (that *Server) writeLoop(ctx context.Context, conn *websocket.Conn, outbox *usecase.Outbox, log *slog.Logger) {
	ticker := time.NewTicker(that.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-outbox.Events():
			data, err := protocol.EncodeEvent(event)
			if err != nil {
				log.Error("failed to encode event", "event", event.Type, "error", err)
				continue
			}

			if err = that.write(ctx, conn, data); err != nil {
				log.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			pingCancel()

			if err != nil {
				log.Debug("ping failed", "error", err)
				return
			}
		case <-outbox.Done():
			if err := outbox.Err(); err != nil {
				log.Warn("closing slow connection", "error", err)
				_ = conn.Close(websocket.StatusPolicyViolation, err.Error())
				return
			}

			that.drain(ctx, conn, outbox, log)
			return
		case <-ctx.Done():
			return
		}
	}
}

// drain writes the events queued before the outbox was closed.
func (that *Server) drain(ctx context.Context, conn *websocket.Conn, outbox *usecase.Outbox, log *slog.Logger) {
	for {
		select {
		case event := <-outbox.Events():
			data, err := protocol.EncodeEvent(event)
			if err != nil {
				log.Error("failed to encode event", "event", event.Type, "error", err)
				continue
			}

			if err = that.write(ctx, conn, data); err != nil {
				log.Debug("write failed", "error", err)
				return
			}
		default:
			return
		}
	}
}

func (that *Server) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return conn.Write(ctx, websocket.MessageText, data)
}
