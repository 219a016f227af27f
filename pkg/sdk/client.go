package sdk

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

// Client is a remote client for the Hireloop Store daemon.
// It implements the engine.Store interface over the line protocol.
type Client struct {
	addr   string
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex // Protects concurrent access to the connection
}

// Connect establishes a TLS-encrypted connection to a remote store daemon.
// If HIRELOOP_DISABLE_TLS is set to "true", it falls back to plain TCP.
func Connect(addr string) (*Client, error) {
	c := &Client{addr: addr}
	if err := c.reconnect(); err != nil {
		return nil, err
	}
	return c, nil
}

func dial(addr string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}

	if os.Getenv("HIRELOOP_DISABLE_TLS") == "true" {
		return dialer.Dial("tcp", addr)
	}
	config := &tls.Config{
		InsecureSkipVerify: true, // We use self-signed certs for internal traffic
	}
	return tls.DialWithDialer(dialer, "tcp", addr, config)
}

func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	conn, err := dial(c.addr)
	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Internal helper for TCP communication
func (c *Client) sendAndReceive(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	var resp string

	// Try up to 3 times with exponential backoff
	for i := 0; i < 3; i++ {
		// Ensure we have a connection
		if c.conn == nil {
			if reconnectErr := c.reconnect(); reconnectErr != nil {
				err = fmt.Errorf("reconnect failed: %w", reconnectErr)
				time.Sleep(time.Duration(i*100) * time.Millisecond)
				continue
			}
		}

		// Set deadlines for the operation
		c.conn.SetDeadline(time.Now().Add(30 * time.Second))

		_, err = fmt.Fprint(c.conn, cmd+"\n")
		if err == nil {
			resp, err = c.reader.ReadString('\n')
			if err == nil {
				resp = strings.TrimSpace(resp)
				if strings.HasPrefix(resp, "ERR") {
					return "", fmt.Errorf("%s", strings.TrimPrefix(resp, "ERR "))
				}
				return resp, nil
			}
		}

		// If we got here, there was an error communicating.
		fmt.Fprintf(os.Stderr, "[Hireloop SDK] Attempt %d failed: %v. Reconnecting...\n", i+1, err)

		if closeErr := c.reconnect(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "[Hireloop SDK] Reconnect attempt failed: %v\n", closeErr)
		}

		// Wait before retrying (exponential backoff)
		time.Sleep(time.Duration((i+1)*200) * time.Millisecond)
	}

	return "", fmt.Errorf("failed after 3 attempts. last error: %v", err)
}

func (c *Client) Get(collection, id string) (engine.Document, error) {
	resp, err := c.sendAndReceive(fmt.Sprintf("GET %s %s", collection, id))
	if err != nil {
		return nil, err
	}
	var doc engine.Document
	err = json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &doc)
	return doc, err
}

func (c *Client) Find(collection string, q engine.Query) ([]engine.Document, error) {
	queryJSON, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	resp, err := c.sendAndReceive(fmt.Sprintf("FIND %s %s", collection, string(queryJSON)))
	if err != nil {
		return nil, err
	}
	var docs []engine.Document
	err = json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &docs)
	return docs, err
}

func (c *Client) Insert(collection string, doc engine.Document) (string, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	resp, err := c.sendAndReceive(fmt.Sprintf("INSERT %s %s", collection, string(docJSON)))
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(resp, "OK "), nil
}

func (c *Client) Update(collection, id string, fields engine.Document) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = c.sendAndReceive(fmt.Sprintf("UPDATE %s %s %s", collection, id, string(fieldsJSON)))
	return err
}

func (c *Client) Delete(collection, id string) error {
	_, err := c.sendAndReceive(fmt.Sprintf("DELETE %s %s", collection, id))
	return err
}

func (c *Client) Collections() ([]string, error) {
	resp, err := c.sendAndReceive("COLLECTIONS")
	if err != nil {
		return nil, err
	}
	var list []string
	err = json.Unmarshal([]byte(strings.TrimPrefix(resp, "OK ")), &list)
	return list, err
}

// NewBatch buffers operations client-side; Commit ships them as a single
// BATCH command so the daemon applies them in one transaction.
func (c *Client) NewBatch() engine.Batch {
	return &clientBatch{client: c}
}

type wireOp struct {
	Op         string          `json:"op"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Fields     engine.Document `json:"fields,omitempty"`
}

type clientBatch struct {
	client *Client
	ops    []wireOp
}

func (b *clientBatch) Update(collection, id string, fields engine.Document) {
	b.ops = append(b.ops, wireOp{Op: "update", Collection: collection, ID: id, Fields: fields})
}

func (b *clientBatch) Delete(collection, id string) {
	b.ops = append(b.ops, wireOp{Op: "delete", Collection: collection, ID: id})
}

func (b *clientBatch) Commit() error {
	opsJSON, err := json.Marshal(b.ops)
	if err != nil {
		return err
	}
	_, err = b.client.sendAndReceive(fmt.Sprintf("BATCH %s", string(opsJSON)))
	return err
}

// Watch opens a live query on a dedicated connection. The daemon pushes a
// SNAPSHOT line for every committed change; Close hangs up and releases the
// server-side watch.
func (c *Client) Watch(collection string, q engine.Query) (engine.Subscription, error) {
	conn, err := dial(c.addr)
	if err != nil {
		return nil, err
	}

	queryJSON, err := json.Marshal(q)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := fmt.Fprintf(conn, "SUBSCRIBE %s %s\n", collection, string(queryJSON)); err != nil {
		conn.Close()
		return nil, err
	}

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	line, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, err
	}
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "ERR") {
		conn.Close()
		return nil, fmt.Errorf("%s", strings.TrimPrefix(line, "ERR "))
	}
	conn.SetReadDeadline(time.Time{})

	sub := &clientSubscription{
		conn: conn,
		ch:   make(chan engine.Snapshot, 1),
	}
	go sub.readLoop(reader)
	return sub, nil
}

type clientSubscription struct {
	conn net.Conn
	ch   chan engine.Snapshot
	once sync.Once
}

func (s *clientSubscription) Updates() <-chan engine.Snapshot { return s.ch }

// Close hangs up the subscription connection; the read loop then closes
// the channel.
func (s *clientSubscription) Close() {
	s.once.Do(func() { s.conn.Close() })
}

func (s *clientSubscription) readLoop(reader *bufio.Reader) {
	defer close(s.ch)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)

		var snap engine.Snapshot
		switch {
		case strings.HasPrefix(line, "SNAPSHOT "):
			var docs []engine.Document
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "SNAPSHOT ")), &docs); err != nil {
				snap = engine.Snapshot{Err: fmt.Errorf("corrupt snapshot: %w", err)}
			} else {
				snap = engine.Snapshot{Docs: docs}
			}
		case strings.HasPrefix(line, "ERR"):
			snap = engine.Snapshot{Err: fmt.Errorf("%s", strings.TrimPrefix(line, "ERR "))}
		default:
			continue
		}

		// Latest-wins: displace an undelivered stale snapshot.
		select {
		case s.ch <- snap:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- snap:
			default:
			}
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	fmt.Fprintln(c.conn, "QUIT")
	return c.conn.Close()
}
