// Package client is the Go client library for the JSON/TCP request
// protocol implemented by internal/ipc: one complete JSON request per
// write, one complete JSON response per read, up to the server's frame
// size limit.
package client

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"
)

var (
	ErrConnectionFailed = errors.New("failed to connect to server")
	ErrInvalidResponse  = errors.New("invalid response from server")
	ErrNotConnected     = errors.New("client is not connected")
)

const maxFrameSize = 8192

type request struct {
	Action     string          `json:"action"`
	Auth       string          `json:"auth,omitempty"`
	Collection string          `json:"collection,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Query      json.RawMessage `json:"query,omitempty"`
	Sort       json.RawMessage `json:"sort,omitempty"`
	Projection json.RawMessage `json:"projection,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Skip       int             `json:"skip,omitempty"`
	Update     json.RawMessage `json:"update,omitempty"`
	Schema     json.RawMessage `json:"schema,omitempty"`
	Field      string          `json:"field,omitempty"`
	Key        string          `json:"key,omitempty"`
	Role       string          `json:"role,omitempty"`
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Count   *int            `json:"count,omitempty"`
}

// Client is a single-connection client. It is safe for concurrent use;
// requests are serialized under an internal mutex since the protocol is
// strictly request-then-response per connection.
type Client struct {
	addr string
	auth string

	mu   sync.Mutex
	conn net.Conn
}

func New(addr, authKey string) *Client {
	return &Client{addr: addr, auth: authKey}
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return ErrConnectionFailed
	}
	c.conn = conn
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) Insert(collection string, doc map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(&request{Action: "insert", Collection: collection, Data: data})
	if err != nil {
		return nil, err
	}
	return doc, checkOK(resp)
}

func (c *Client) Upsert(collection string, query, doc map[string]interface{}) error {
	q, err := json.Marshal(query)
	if err != nil {
		return err
	}
	d, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	resp, err := c.send(&request{Action: "upsert", Collection: collection, Query: q, Data: d})
	if err != nil {
		return err
	}
	return checkOK(resp)
}

func (c *Client) Find(collection string, query, sort, projection map[string]interface{}, limit, skip int) ([]map[string]interface{}, error) {
	req := &request{Action: "find", Collection: collection, Limit: limit, Skip: skip}
	var err error
	if req.Query, err = marshalOrNil(query); err != nil {
		return nil, err
	}
	if req.Sort, err = marshalOrNil(sort); err != nil {
		return nil, err
	}
	if req.Projection, err = marshalOrNil(projection); err != nil {
		return nil, err
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if err := checkOK(resp); err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &results); err != nil {
			return nil, ErrInvalidResponse
		}
	}
	return results, nil
}

func (c *Client) Count(collection string, query map[string]interface{}) (int, error) {
	q, err := marshalOrNil(query)
	if err != nil {
		return 0, err
	}
	resp, err := c.send(&request{Action: "count", Collection: collection, Query: q})
	if err != nil {
		return 0, err
	}
	if err := checkOK(resp); err != nil {
		return 0, err
	}
	if resp.Count == nil {
		return 0, ErrInvalidResponse
	}
	return *resp.Count, nil
}

func (c *Client) Update(collection string, query, update map[string]interface{}) error {
	q, err := json.Marshal(query)
	if err != nil {
		return err
	}
	u, err := json.Marshal(update)
	if err != nil {
		return err
	}
	resp, err := c.send(&request{Action: "update", Collection: collection, Query: q, Update: u})
	if err != nil {
		return err
	}
	return checkOK(resp)
}

func (c *Client) Delete(collection string, query map[string]interface{}) error {
	q, err := json.Marshal(query)
	if err != nil {
		return err
	}
	resp, err := c.send(&request{Action: "delete", Collection: collection, Query: q})
	if err != nil {
		return err
	}
	return checkOK(resp)
}

func (c *Client) SetSchema(collection string, schema map[string]interface{}) error {
	s, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	resp, err := c.send(&request{Action: "set_schema", Collection: collection, Schema: s})
	if err != nil {
		return err
	}
	return checkOK(resp)
}

func (c *Client) CreateIndex(collection, field string) error {
	resp, err := c.send(&request{Action: "create_index", Collection: collection, Field: field})
	if err != nil {
		return err
	}
	return checkOK(resp)
}

func (c *Client) Compact(collection string) error {
	resp, err := c.send(&request{Action: "compact", Collection: collection})
	if err != nil {
		return err
	}
	return checkOK(resp)
}

func (c *Client) CreateUser(key, role string) error {
	resp, err := c.send(&request{Action: "create_user", Key: key, Role: role})
	if err != nil {
		return err
	}
	return checkOK(resp)
}

// Exit sends a graceful close and tears down the local connection.
func (c *Client) Exit() error {
	resp, err := c.send(&request{Action: "exit"})
	if err == nil && resp.Status != "goodbye" {
		err = checkOK(resp)
	}
	c.Close()
	return err
}

func (c *Client) send(req *request) (*response, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}
	req.Auth = c.auth

	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if len(data) > maxFrameSize {
		return nil, errors.New("request exceeds max frame size")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	if _, err := c.conn.Write(data); err != nil {
		return nil, err
	}

	buf := make([]byte, maxFrameSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}

	var resp response
	if err := json.Unmarshal(buf[:n], &resp); err != nil {
		return nil, ErrInvalidResponse
	}
	return &resp, nil
}

func checkOK(resp *response) error {
	if resp.Status != "ok" && resp.Status != "goodbye" {
		if resp.Message != "" {
			return errors.New(resp.Message)
		}
		return ErrInvalidResponse
	}
	return nil
}

func marshalOrNil(m map[string]interface{}) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
