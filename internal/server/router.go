// Package server exposes the document engine over a line-oriented TCP
// protocol, optionally wrapped in TLS. One command per line; JSON payloads
// ride in the trailing argument. SUBSCRIBE turns the connection into a
// server-push snapshot stream.
package server

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

type Router struct {
	store engine.Store
	cert  *tls.Certificate

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func NewRouter(s engine.Store) *Router {
	return &Router{store: s}
}

// SetCertificate sets the TLS certificate for the router.
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Listen starts the TCP server. It blocks until Stop is called or the
// listener fails.
func (r *Router) Listen(port string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		listener.Close()
		return nil
	}
	r.listener = listener
	r.mu.Unlock()
	defer listener.Close()

	semaphore := make(chan struct{}, 100) // Max 100 concurrent connections

	for {
		conn, err := listener.Accept()
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if closed {
				return nil
			}
			continue
		}

		conn.SetDeadline(time.Now().Add(5 * time.Minute))

		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				c.Close()
			}()
			r.handleConnection(c)
		}(conn)
	}
}

// Stop shuts the listener down; in-flight connections finish on their own
// deadlines.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.listener != nil {
		r.listener.Close()
	}
}

// Addr returns the bound listener address, or nil before Listen.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

func (r *Router) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		// Set a deadline for the next command
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		line, err := reader.ReadString('\n')
		if err != nil {
			return // Connection closed or timeout
		}

		line = strings.TrimSpace(line)
		parts := strings.Fields(line)
		if len(parts) < 1 {
			continue
		}

		command := strings.ToUpper(parts[0])

		switch command {
		case "GET":
			if len(parts) < 3 {
				continue
			}
			doc, err := r.store.Get(parts[1], parts[2])
			respondJSON(conn, doc, err)

		case "FIND":
			if len(parts) < 2 {
				continue
			}
			var q engine.Query
			if len(parts) > 2 {
				if err := json.Unmarshal([]byte(strings.Join(parts[2:], " ")), &q); err != nil {
					fmt.Fprintln(conn, "ERR invalid query json")
					continue
				}
			}
			docs, err := r.store.Find(parts[1], q)
			respondJSON(conn, docs, err)

		case "INSERT":
			if len(parts) < 3 {
				continue
			}
			var doc engine.Document
			if err := json.Unmarshal([]byte(strings.Join(parts[2:], " ")), &doc); err != nil {
				fmt.Fprintln(conn, "ERR invalid document json")
				continue
			}
			id, err := r.store.Insert(parts[1], doc)
			if err != nil {
				fmt.Fprintln(conn, "ERR", err)
			} else {
				fmt.Fprintln(conn, "OK", id)
			}

		case "UPDATE":
			if len(parts) < 4 {
				continue
			}
			var fields engine.Document
			if err := json.Unmarshal([]byte(strings.Join(parts[3:], " ")), &fields); err != nil {
				fmt.Fprintln(conn, "ERR invalid fields json")
				continue
			}
			if err := r.store.Update(parts[1], parts[2], fields); err != nil {
				fmt.Fprintln(conn, "ERR", err)
			} else {
				fmt.Fprintln(conn, "OK")
			}

		case "DELETE":
			if len(parts) < 3 {
				continue
			}
			if err := r.store.Delete(parts[1], parts[2]); err != nil {
				fmt.Fprintln(conn, "ERR", err)
			} else {
				fmt.Fprintln(conn, "OK")
			}

		case "BATCH":
			if len(parts) < 2 {
				continue
			}
			var ops []BatchOp
			if err := json.Unmarshal([]byte(strings.Join(parts[1:], " ")), &ops); err != nil {
				fmt.Fprintln(conn, "ERR invalid batch json")
				continue
			}
			if err := r.applyBatch(ops); err != nil {
				fmt.Fprintln(conn, "ERR", err)
			} else {
				fmt.Fprintln(conn, "OK")
			}

		case "COLLECTIONS":
			list, err := r.store.Collections()
			respondJSON(conn, list, err)

		case "SUBSCRIBE":
			if len(parts) < 2 {
				continue
			}
			var q engine.Query
			if len(parts) > 2 {
				if err := json.Unmarshal([]byte(strings.Join(parts[2:], " ")), &q); err != nil {
					fmt.Fprintln(conn, "ERR invalid query json")
					continue
				}
			}
			// Takes over the connection until the client hangs up.
			r.streamSubscription(conn, reader, parts[1], q)
			return

		case "PING":
			fmt.Fprintln(conn, "PONG")

		case "QUIT":
			return
		}
	}
}

// BatchOp is one wire-format operation inside a BATCH command.
type BatchOp struct {
	Op         string          `json:"op"` // "update" or "delete"
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Fields     engine.Document `json:"fields,omitempty"`
}

func (r *Router) applyBatch(ops []BatchOp) error {
	batch := r.store.NewBatch()
	for _, op := range ops {
		switch op.Op {
		case "update":
			batch.Update(op.Collection, op.ID, op.Fields)
		case "delete":
			batch.Delete(op.Collection, op.ID)
		default:
			return fmt.Errorf("unknown batch op %q", op.Op)
		}
	}
	return batch.Commit()
}

// streamSubscription pushes SNAPSHOT lines until the client disconnects.
// The watch is released on every exit path.
func (r *Router) streamSubscription(conn net.Conn, reader *bufio.Reader, collection string, q engine.Query) {
	sub, err := r.store.Watch(collection, q)
	if err != nil {
		fmt.Fprintln(conn, "ERR", err)
		return
	}
	defer sub.Close()

	fmt.Fprintln(conn, "OK")
	// Push mode: no more commands expected, lift the read deadline and
	// use reads only to notice the client hanging up.
	conn.SetDeadline(time.Time{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := reader.ReadString('\n'); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				return
			}
			if snap.Err != nil {
				if _, err := fmt.Fprintln(conn, "ERR", snap.Err); err != nil {
					return
				}
				continue
			}
			payload, err := json.Marshal(snap.Docs)
			if err != nil {
				fmt.Fprintln(conn, "ERR internal error")
				continue
			}
			if _, err := fmt.Fprintln(conn, "SNAPSHOT", string(payload)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func respondJSON(conn net.Conn, v any, err error) {
	if err != nil {
		fmt.Fprintln(conn, "ERR", err)
		return
	}
	res, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(conn, "ERR internal error")
		return
	}
	fmt.Fprintln(conn, "OK", string(res))
}
