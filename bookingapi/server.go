package bookingapi

import (
	"errors"
	"net"
	"net/rpc"

	"github.com/wfunc/gamecenter/logger"
)

// Server exposes a Handler as BookingService, for local stubs and tests.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and registers h.
func NewServer(addr string, h Handler) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(ServiceName, h); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("Booking RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("Booking RPC server listener closed.")
				return
			}
			logger.Log.Errorf("Booking RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping booking RPC server.")
		s.listener.Close()
	}
}
