package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/wfunc/gamecenter/center"
	"github.com/wfunc/gamecenter/logger"
	"github.com/wfunc/gamecenter/network"
	"github.com/wfunc/gamecenter/services"
	"github.com/wfunc/gamecenter/session"
)

// GameCenterServer serves the booking HTTP API, the seat stream and /metrics.
type GameCenterServer struct {
	addr           string
	engine         *gin.Engine
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	bookings       *services.BookingService
	centers        *center.Manager
	metrics        http.Handler
	streams        map[*seatStream]struct{}
	mutex          sync.Mutex
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

// NewGameCenterServer builds the router. metrics may be nil.
func NewGameCenterServer(addr string, sessions *session.Manager, bookings *services.BookingService, centers *center.Manager, metrics http.Handler) *GameCenterServer {
	s := &GameCenterServer{
		addr:           addr,
		sessionManager: sessions,
		bookings:       bookings,
		centers:        centers,
		metrics:        metrics,
		streams:        make(map[*seatStream]struct{}),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestLogger())
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *GameCenterServer) Handler() http.Handler {
	return s.engine
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *GameCenterServer) Start() error {
	logger.Log.Infof("Game center server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes open seat streams and waits for handlers.
func (s *GameCenterServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })

	s.mutex.Lock()
	for stream := range s.streams {
		stream.conn.Close()
	}
	s.mutex.Unlock()

	return s.httpServer.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Debugw("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func (s *GameCenterServer) handleStream(c *gin.Context) {
	sess := currentSession(c)
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(sess, network.NewWSConnection(conn))
}

func (s *GameCenterServer) handleConnection(sess *session.Session, conn network.Connection) {
	stream := newSeatStream(sess, conn)

	s.mutex.Lock()
	select {
	case <-s.shutdownChan:
		s.mutex.Unlock()
		conn.Close()
		return
	default:
	}
	s.streams[stream] = struct{}{}
	s.mutex.Unlock()

	logger.Log.Infof("New seat stream from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())

	go stream.writeLoop()
	defer func() {
		logger.Log.Infof("Seat stream closed from %s, session ID: %s", conn.RemoteAddr(), sess.GetID())
		if stream.centerID != "" {
			s.centers.Unwatch(stream.centerID, stream.id)
		}
		stream.close()

		s.mutex.Lock()
		delete(s.streams, stream)
		s.mutex.Unlock()
	}()

	for {
		packet, err := conn.ReadPacket()
		if err != nil {
			return
		}
		if _, ok := s.sessionManager.Get(sess.ID); !ok {
			stream.push(network.MsgTypeSeatError, network.ErrorPayload{Code: "session_expired", Message: "session expired"})
			return
		}
		s.handlePacket(stream, packet)
	}
}

func (s *GameCenterServer) handlePacket(stream *seatStream, packet *network.Packet) {
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		stream.push(network.MsgTypeHeartbeat, struct{}{})
	case network.MsgTypeSeatRequest:
		s.handleSeatRequest(stream, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

// handleSeatRequest answers with the current snapshot and moves the subscription to the
// requested center.
func (s *GameCenterServer) handleSeatRequest(stream *seatStream, packet *network.Packet) {
	var req network.SeatRequest
	if err := packet.Unmarshal(&req); err != nil || req.CenterID == "" {
		stream.push(network.MsgTypeSeatError, network.ErrorPayload{Code: "bad_request", Message: "center_id required"})
		return
	}

	inv, err := s.centers.Inventory(req.CenterID)
	if err != nil {
		stream.push(network.MsgTypeSeatError, network.ErrorPayload{Code: "not_found", Message: err.Error()})
		return
	}

	if stream.centerID != req.CenterID {
		if stream.centerID != "" {
			s.centers.Unwatch(stream.centerID, stream.id)
		}
		stream.centerID = req.CenterID
		s.centers.Watch(req.CenterID, stream.id, stream)
	}
	stream.ApplySnapshot(inv)
}
