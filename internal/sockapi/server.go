// Package sockapi serves the bank protocol over TCP, one JSON document
// per line in each direction. Requests on a connection are handled
// sequentially, so responses pair with requests in FIFO order; clients
// wanting concurrent blocking calls open one connection per call.
package sockapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net"
	"os"
	"sync"

	"github.com/joelkehle/blackboard/internal/bank"
)

// maxLineBytes bounds a single request line.
const maxLineBytes = 1 << 20

type Server struct {
	dispatcher *bank.Dispatcher
	logger     *log.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewServer(d *bank.Dispatcher) *Server {
	return &Server{
		dispatcher: d,
		logger:     log.New(os.Stdout, "sockapi ", log.LstdFlags),
		conns:      map[net.Conn]struct{}{},
	}
}

// Serve accepts connections on lis until ctx is canceled. Cancellation
// closes the listener and every open connection, which unblocks any
// in-flight reads.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = lis.Close()
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
	}()

	s.logger.Printf("listening on %s", lis.Addr())
	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		resp := s.dispatcher.DispatchRaw(ctx, line)
		if err := s.writeResponse(conn, resp); err != nil {
			s.logger.Printf("write to %s failed: %v", conn.RemoteAddr(), err)
			return
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		s.logger.Printf("read from %s failed: %v", conn.RemoteAddr(), err)
	}
}

func (s *Server) writeResponse(conn net.Conn, resp any) error {
	blob, err := json.Marshal(resp)
	if err != nil {
		// content survived a JSON decode on the way in, so this is
		// effectively unreachable, but the line protocol must always
		// answer with something
		blob = []byte(`{"error":"unserializable response"}`)
	}
	_, err = conn.Write(append(blob, '\n'))
	return err
}
