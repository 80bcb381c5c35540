package tcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
	"github.com/rocketscienceinc/tictactoe-hub/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-hub/internal/usecase"
)

const writeTimeout = 10 * time.Second

type dispatcher interface {
	Connect() *usecase.Session
}

// Server speaks newline-delimited JSON messages over plain TCP.
type Server struct {
	logger     *slog.Logger
	dispatcher dispatcher

	wg sync.WaitGroup
}

func New(logger *slog.Logger, dispatcher dispatcher) *Server {
	return &Server{
		logger:     logger.With("component", "tcp"),
		dispatcher: dispatcher,
	}
}

// Start - listens on port until ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return that.Serve(ctx, listener)
}

// Serve accepts connections from listener and closes it when ctx is done.
func (that *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				that.wg.Wait()
				return nil
			}

			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed: %w", err)
			}

			that.logger.Warn("failed to accept connection", "error", err)
			continue
		}

		that.wg.Add(1)
		go func() {
			defer that.wg.Done()
			that.serveConn(ctx, conn)
		}()
	}
}

func (that *Server) serveConn(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := that.dispatcher.Connect()
	log := that.logger.With("session", session.ID(), "remote", conn.RemoteAddr().String())
	log.Info("TCP connection established")

	// unblocks the reader once the connection is no longer needed
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	written := make(chan struct{})
	go func() {
		defer close(written)
		defer cancel()
		that.writeLoop(ctx, conn, session.Outbox(), log)
	}()

	that.readLoop(ctx, conn, session, log)

	// closing the session lets the writer flush what is already queued
	session.Close(context.WithoutCancel(ctx))
	<-written

	log.Info("TCP connection closed")
}

func (that *Server) readLoop(ctx context.Context, conn net.Conn, session *usecase.Session, log *slog.Logger) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, protocol.MaxMessageSize), protocol.MaxMessageSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var err error
		if req, decodeErr := protocol.DecodeRequest(line); decodeErr != nil {
			err = session.Reject(decodeErr)
		} else {
			err = session.Handle(ctx, req)
		}

		if err != nil {
			log.Warn("closing connection", "error", err)
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Debug("read failed", "error", err)
	}
}

// writeLoop sends queued events in order until the outbox is closed.
func (that *Server) writeLoop(ctx context.Context, conn net.Conn, outbox *usecase.Outbox, log *slog.Logger) {
	writer := bufio.NewWriter(conn)

	send := func(event entity.Event) error {
		data, err := protocol.EncodeEvent(event)
		if err != nil {
			log.Error("failed to encode event", "event", event.Type, "error", err)
			return nil
		}

		return that.write(conn, writer, data)
	}

	for {
		select {
		case event := <-outbox.Events():
			if err := send(event); err != nil {
				log.Debug("write failed", "error", err)
				return
			}
		case <-outbox.Done():
			if err := outbox.Err(); err != nil {
				log.Warn("closing slow connection", "error", err)
				return
			}

			for {
				select {
				case event := <-outbox.Events():
					if err := send(event); err != nil {
						return
					}
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (that *Server) write(conn net.Conn, writer *bufio.Writer, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	if _, err := writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	return nil
}
