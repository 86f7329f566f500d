package sync

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"

	"moviedex/internal/logging"
)

// Server accepts line-oriented TCP subscribers. A client receives every topic
// until it sends {"type":"subscribe","topics":["trend"]}.
type Server struct {
	Addr string
	Hub  *Hub

	log  *slog.Logger
	mu   sync.Mutex
	ln   net.Listener
	done chan struct{}
}

func NewServer(addr string, hub *Hub, log *slog.Logger) *Server {
	return &Server{Addr: addr, Hub: hub, log: logging.Component(log, "tcp-sync"), done: make(chan struct{})}
}

// Run blocks until Close is called or the listener fails.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return ln.Close()
	default:
	}
	s.ln = ln
	s.mu.Unlock()
	s.log.Info("listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	if _, err := conn.Write(statusLine("welcome", transportTCP, nil)); err != nil {
		_ = conn.Close()
		return
	}
	sub := s.Hub.SubscribeTCP(conn, nil)
	s.log.Debug("client connected", "remote", remote)

	defer func() {
		s.Hub.Unsubscribe(sub)
		s.log.Debug("client disconnected", "remote", remote)
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var req subscribeRequest
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil || req.Type != "subscribe" {
			continue
		}
		s.Hub.SetTopics(sub, ParseTopics(req.Topics))
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
