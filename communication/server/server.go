package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ginrummy/agent"
	"ginrummy/communication"
	"ginrummy/meta"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  meta.MAX_LINE,
	WriteBufferSize: meta.MAX_LINE,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const shutdownTimeout = 5 * time.Second

// Server serves player callbacks received over the line protocol. Every
// connection gets its own player and its commands are answered in order.
type Server struct {
	newPlayer func(conn int64) agent.Player
	conns     atomic.Int64
}

// NewServer serves players made by newPlayer, which is given the number of
// the connection, counting from 1.
func NewServer(newPlayer func(conn int64) agent.Player) *Server {
	if newPlayer == nil {
		panic("need a player factory")
	}
	return &Server{newPlayer: newPlayer}
}

// ServeConn answers commands until the peer closes conn or ctx is done.
func (s *Server) ServeConn(ctx context.Context, conn communication.Conn) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	id := s.conns.Add(1)
	logger := log.With().Int64("conn", id).Logger()
	logger.Debug().Msg("Connection opened")
	defer func() { logger.Debug().Msg("Connection closed") }()

	player := s.newPlayer(id)
	for {
		line, err := conn.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read command: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		var response string
		request, err := communication.DecodeRequest(line)
		if err != nil {
			logger.Warn().Msgf("Rejecting %q: %v", line, err)
			response = communication.EncodeError(err)
		} else {
			response = communication.Dispatch(player, request)
		}
		logger.Debug().Msgf("%s -> %s", line, response)
		if err := conn.WriteLine(response); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

// Serve accepts TCP connections on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		c, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ServeConn(ctx, communication.NewStreamConn(c)); err != nil && ctx.Err() == nil {
				log.Warn().Msgf("Connection from %s failed: %v", c.RemoteAddr(), err)
			}
		}()
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	log.Info().Msgf("Serving the line protocol on %s", l.Addr())
	return s.Serve(ctx, l)
}

// HandleWebSocket upgrades the request and serves the protocol with one line
// per text message.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Msgf("Upgrade failed: %v", err)
		return
	}
	if err := s.ServeConn(r.Context(), communication.NewWebSocketConn(ws)); err != nil && r.Context().Err() == nil {
		log.Warn().Msgf("Websocket from %s failed: %v", r.RemoteAddr, err)
	}
}

// ListenAndServeWebSocket serves HandleWebSocket on meta.WebSocketPath until
// ctx is done.
func (s *Server) ListenAndServeWebSocket(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc(meta.WebSocketPath, s.HandleWebSocket)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Msgf("Websocket shutdown: %v", err)
		}
	})
	defer stop()

	log.Info().Msgf("Serving websockets on %s%s", addr, meta.WebSocketPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server: %w", err)
	}
	return nil
}
