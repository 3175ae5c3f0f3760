package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// staticServer manages at most one loopback file server with proper
// cleanup. It exists so relative assets next to the viewed file resolve:
// the server is rooted at the file's parent directory and restarted only
// when that directory changes.
type staticServer struct {
	mu   sync.Mutex
	srv  *http.Server
	done chan struct{}
	dir  string
	port int
}

// ensure starts a file server rooted at dir on an OS-assigned loopback
// port, reusing the running instance when the directory is unchanged.
// Returns the bound port.
func (s *staticServer) ensure(dir string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil && s.dir == dir {
		return s.port, nil
	}

	// Stop existing server before binding a new one
	s.stopLocked()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("cannot bind static server: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	srv := &http.Server{
		Handler:     http.FileServer(http.Dir(dir)),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Warn("Static server stopped unexpectedly", "dir", dir, "err", err)
		}
	}()

	s.srv = srv
	s.done = done
	s.dir = dir
	s.port = port

	log.Info("Static server started", "dir", dir, "port", port)
	return port, nil
}

// stop shuts down the running server, if any, and waits for its accept
// loop to exit. Safe to call repeatedly.
func (s *staticServer) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *staticServer) stopLocked() {
	if s.srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		log.Warn("Static server shutdown", "err", err)
		s.srv.Close()
	}
	<-s.done

	log.Info("Static server stopped", "dir", s.dir, "port", s.port)

	s.srv = nil
	s.done = nil
	s.dir = ""
	s.port = 0
}

// running reports the served directory and port of the active server.
func (s *staticServer) running() (string, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir, s.port, s.srv != nil
}
