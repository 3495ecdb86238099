// Package raw_server forwards the unparsed P1 byte stream to TCP
// clients, so other tooling can consume the meter without owning the
// serial port. Forwarding is verbatim: parse failures upstream do not
// affect what clients see.
package raw_server

import (
	"log"
	"net"
	"sync"
	"time"
)

// writeTimeout bounds how long a slow client may stall a broadcast
// before being dropped. The tap must never block the read loop.
const writeTimeout = 2 * time.Second

type RawServer struct {
	listener     net.Listener
	clients      map[net.Conn]bool
	clientsMutex sync.RWMutex
}

func NewRawServer() *RawServer {
	return &RawServer{
		clients: make(map[net.Conn]bool),
	}
}

// Listen starts accepting clients on the given address. Runs the accept
// loop in a goroutine.
func (s *RawServer) Listen(address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.listener = ln
	log.Printf("Raw P1 fan-out listening on %s", address)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				// Listener closed, we're done.
				return
			}
			s.addClient(conn)
		}
	}()
	return nil
}

// Broadcast writes a chunk of the raw stream to every connected client.
// Clients that cannot keep up are disconnected.
func (s *RawServer) Broadcast(data []byte) {
	s.clientsMutex.RLock()
	clients := make([]net.Conn, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.clientsMutex.RUnlock()

	for _, client := range clients {
		client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := client.Write(data); err != nil {
			s.removeClient(client)
		}
	}
}

// ClientCount reports the number of connected raw stream consumers.
func (s *RawServer) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

func (s *RawServer) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.clientsMutex.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[net.Conn]bool)
	s.clientsMutex.Unlock()
}

func (s *RawServer) addClient(conn net.Conn) {
	s.clientsMutex.Lock()
	s.clients[conn] = true
	s.clientsMutex.Unlock()
	log.Printf("Raw stream client connected: %s", conn.RemoteAddr())
}

func (s *RawServer) removeClient(conn net.Conn) {
	s.clientsMutex.Lock()
	delete(s.clients, conn)
	s.clientsMutex.Unlock()
	conn.Close()
	log.Printf("Raw stream client disconnected: %s", conn.RemoteAddr())
}
