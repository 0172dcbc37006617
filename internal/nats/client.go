package nats

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

type Client struct {
	Conn *nats.Conn
}

func NewClient(url string) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.Name("upload-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("[NATS] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}

	log.Println("Connected to NATS at", url)
	return &Client{Conn: conn}, nil
}

// SubscribeAll loads all routes once during startup
func (c *Client) SubscribeAll(routes map[string]nats.MsgHandler) error {
	for subject, handler := range routes {
		_, err := c.Conn.Subscribe(subject, handler)
		if err != nil {
			return err
		}
		log.Printf("[NATS] Subscribed to: %s", subject)
	}
	return nil
}

// Publish marshals the payload and publishes it on the subject.
func (c *Client) Publish(subject string, payload interface{}) error {
	if c == nil || c.Conn == nil || !c.Conn.IsConnected() {
		return nats.ErrConnectionClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.Conn.Publish(subject, data)
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if c != nil && c.Conn != nil && c.Conn.IsConnected() {
		c.Conn.Close()
	}
}
