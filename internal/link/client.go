package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client is the Pi side of the link.
type Client struct {
	conn *websocket.Conn
	name string

	closeOnce sync.Once
}

// Dial connects to a link server and announces name.
func Dial(ctx context.Context, url, name string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &Client{conn: conn, name: name}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(Encode(Name(name)))); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send name: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"server": url,
		"name":   name,
	}).Info("Connected to link server")

	return c, nil
}

// Run reads frames and hands every non-empty TTS payload to onSpeech. It
// returns nil when the server sends EXIT, closes normally, or ctx ends.
func (c *Client) Run(ctx context.Context, onSpeech func(text string)) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return nil
			}
			return fmt.Errorf("link read failed: %w", err)
		}

		frame, err := Decode(string(data))
		if err != nil {
			logrus.WithField("frame", string(data)).Warn("Unknown command from server")
			continue
		}

		switch frame.Kind {
		case KindTTS:
			if frame.Payload != "" {
				onSpeech(frame.Payload)
			}
		case KindExit:
			logrus.Info("Link server asked us to exit")
			c.Close()
			return nil
		default:
			logrus.WithField("kind", frame.Kind).Debug("Ignoring server frame")
		}
	}
}

// Close releases the connection. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}
