package link

import (
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Pi clients on the LAN
	},
}

// ErrClosed is returned by Broadcast after Close.
var ErrClosed = errors.New("link: server closed")

type peer struct {
	conn *websocket.Conn
	name string

	writeMu sync.Mutex
}

func (p *peer) send(f Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, []byte(Encode(f)))
}

func (p *peer) ping() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Server is the laptop side: it accepts Pi clients and broadcasts speech to them.
type Server struct {
	mu     sync.Mutex
	peers  map[*peer]struct{}
	closed bool

	// OnJoin, when set, is called with the name a client announced.
	OnJoin func(name string)
}

func NewServer() *Server {
	return &Server{peers: make(map[*peer]struct{})}
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("Link upgrade failed")
		return
	}

	p := &peer{conn: conn}
	if !s.add(p) {
		p.send(Exit())
		conn.Close()
		return
	}
	defer s.remove(p)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go s.keepAlive(p, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("client", p.name).Warn("Link client dropped")
			}
			return
		}

		frame, err := Decode(string(data))
		if err != nil {
			logrus.WithField("frame", string(data)).Warn("Unknown frame from client")
			continue
		}

		switch frame.Kind {
		case KindName:
			s.mu.Lock()
			p.name = frame.Payload
			s.mu.Unlock()

			logrus.WithFields(logrus.Fields{
				"client": frame.Payload,
				"remote": r.RemoteAddr,
			}).Info("Link client connected")
			if s.OnJoin != nil {
				s.OnJoin(frame.Payload)
			}
		case KindExit:
			return
		default:
			logrus.WithField("kind", frame.Kind).Debug("Ignoring client frame")
		}
	}
}

func (s *Server) keepAlive(p *peer, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				return
			}
		}
	}
}

func (s *Server) add(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.peers[p] = struct{}{}
	return true
}

func (s *Server) remove(p *peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()

	p.conn.Close()
}

func (s *Server) snapshot() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

// Broadcast sends text as a TTS frame to every connected client. Blank text
// is not sent. A client whose write fails is disconnected.
func (s *Server) Broadcast(text string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if text == "" {
		return nil
	}

	for _, p := range s.snapshot() {
		if err := p.send(Speech(text)); err != nil {
			logrus.WithError(err).WithField("client", p.name).Warn("Dropping link client")
			p.conn.Close()
		}
	}
	return nil
}

// Names lists the announced names of connected clients, sorted.
func (s *Server) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.peers))
	for p := range s.peers {
		if p.name != "" {
			names = append(names, p.name)
		}
	}
	sort.Strings(names)
	return names
}

// Close tells every client to exit and refuses new ones.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	for _, p := range s.snapshot() {
		p.send(Exit())
		p.writeMu.Lock()
		p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		p.writeMu.Unlock()
		p.conn.Close()
	}
	return nil
}
