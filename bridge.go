package main

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// keepaliveInterval is how often an empty read is sent to keep idle
// connections from being timed out by the server or a proxy.
const keepaliveInterval = 30 * time.Second

var (
	ErrInvalidAddress = errors.New("host and port are required")
	ErrNoConnection   = errors.New("no connection")
)

// State is the lifecycle of a Session's connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// BridgeOptions wires a TerminalBridge to its collaborators. Zero values
// get working defaults except NewWidget, which is required.
type BridgeOptions struct {
	Dialer    Dialer
	Geometry  *GeometryCalculator
	NewWidget WidgetFactory
	Mount     io.Writer
	Notifier  Notifier
	Clock     Clock

	// Record, if set, opens a recorder for each session.
	Record func() (*Recorder, error)

	// OnStateChange observes every transition of every session.
	OnStateChange func(from, to State)

	Verbose bool
}

// Session owns one connection and everything created for it.
type Session struct {
	ID   string
	Host string
	Port string

	state    State
	conn     Conn
	view     *TerminalView
	ticker   Ticker
	recorder *Recorder
	cancel   context.CancelFunc
	done     chan struct{}
}

// Done is closed once the session is torn down, whatever the reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) tag() string {
	return "bridge-" + s.ID[:8]
}

// TerminalBridge connects a local terminal view to a remote terminal
// server. All session state is guarded by mu, so transport, input and
// timer callbacks run one at a time.
type TerminalBridge struct {
	opts BridgeOptions

	mu      sync.Mutex
	session *Session
}

func NewTerminalBridge(opts BridgeOptions) *TerminalBridge {
	if opts.Dialer == nil {
		opts.Dialer = NewWebSocketDialer()
	}
	if opts.Geometry == nil {
		opts.Geometry = &GeometryCalculator{Cells: MeasuredCells{}}
	}
	if opts.Mount == nil {
		opts.Mount = io.Discard
	}
	if opts.Notifier == nil {
		opts.Notifier = NewConsoleNotifier(io.Discard)
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &TerminalBridge{opts: opts}
}

// Session returns the current session, or nil before the first connect.
func (b *TerminalBridge) Session() *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Connect validates the address and starts dialing ws://host:port/ws in
// the background. A previous session is torn down first. Validation
// failures are shown to the user and returned; transport failures are only
// shown, since they happen later.
func (b *TerminalBridge) Connect(ctx context.Context, host, port string) (*Session, error) {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	if host == "" || port == "" {
		if host == "" {
			b.opts.Notifier.Notify(NoticeValidation, "Please input host!")
		} else {
			b.opts.Notifier.Notify(NoticeValidation, "Please input port!")
		}
		return nil, ErrInvalidAddress
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:     uuid.NewString(),
		Host:   host,
		Port:   port,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	finishPrev := func() {}
	b.mu.Lock()
	if prev := b.session; prev != nil && prev.state != StateClosed {
		log.Printf("[%s] Replaced by a new connection\n", prev.tag())
		finishPrev = b.teardownLocked(prev, nil)
	}
	b.session = s
	b.setStateLocked(s, StateConnecting)
	b.mu.Unlock()
	finishPrev()

	url := terminalURL(host, port)
	log.Printf("[%s] Connecting to %s\n", s.tag(), url)
	go b.run(ctx, s, url)

	return s, nil
}

func (b *TerminalBridge) run(ctx context.Context, s *Session, url string) {
	conn, err := b.opts.Dialer.Dial(ctx, url)

	b.mu.Lock()
	if s.state != StateConnecting {
		// Disconnected or replaced while dialing.
		b.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		log.Printf("[%s] Connection failed: %v\n", s.tag(), err)
		finish := b.teardownLocked(s, &notice{NoticeTransport, "Connection error: could not reach " + s.Host + ":" + s.Port})
		b.mu.Unlock()
		finish()
		return
	}
	s.conn = conn
	finish := b.openLocked(s)
	b.mu.Unlock()

	if finish != nil {
		finish()
		return
	}
	b.readLoop(s, conn)
}

// openLocked runs once the transport is open: size the view, mount it,
// announce the size, start the keepalive and wire input. If the view can't
// be mounted the session is torn down and the teardown's finish is returned.
func (b *TerminalBridge) openLocked(s *Session) (finish func()) {
	b.setStateLocked(s, StateOpen)

	g, err := b.opts.Geometry.Compute()
	if err != nil {
		g = Geometry{Cols: defaultCols, Rows: defaultRows}
		log.Printf("[%s] Couldn't measure display, using %s: %v\n", s.tag(), g, err)
	}

	widget := b.opts.NewWidget(g)
	widget.OnData(func(data string) {
		b.handleInput(s, data)
	})
	s.view = newTerminalView(widget, g, b.opts.Mount)
	if err := s.view.open(); err != nil {
		log.Printf("[%s] %v\n", s.tag(), err)
		return b.teardownLocked(s, &notice{NoticeTransport, "Connection error: could not open terminal"})
	}

	if b.opts.Record != nil {
		rec, err := b.opts.Record()
		if err != nil {
			log.Printf("[%s] Recording disabled: %v\n", s.tag(), err)
		} else if err := rec.WriteHeader(g.Cols, g.Rows); err != nil {
			log.Printf("[%s] Recording disabled: %v\n", s.tag(), err)
			rec.Close()
		} else {
			s.recorder = rec
		}
	}

	log.Printf("[%s] Connected, terminal %s\n", s.tag(), g)
	if err := s.conn.WriteJSON(newResizeMessage(g.Cols, g.Rows)); err != nil {
		log.Printf("[%s] Resize send error: %v\n", s.tag(), err)
	}

	s.ticker = b.opts.Clock.NewTicker(keepaliveInterval)
	go b.keepalive(s, s.ticker)
	return nil
}

func (b *TerminalBridge) keepalive(s *Session, t Ticker) {
	for {
		select {
		case <-s.done:
			return
		case <-t.Chan():
			b.send(s, newReadMessage(""))
		}
	}
}

// handleInput forwards view input; dropped unless the session is open.
func (b *TerminalBridge) handleInput(s *Session, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.state != StateOpen {
		return
	}
	if s.recorder != nil {
		s.recorder.RecordInput(data)
	}
	b.sendLocked(s, newReadMessage(data))
}

func (b *TerminalBridge) send(s *Session, msg ReadMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.state != StateOpen {
		return
	}
	b.sendLocked(s, msg)
}

func (b *TerminalBridge) sendLocked(s *Session, msg ReadMessage) {
	if err := s.conn.WriteJSON(msg); err != nil {
		log.Printf("[%s] Send error: %v\n", s.tag(), err)
	}
}

func (b *TerminalBridge) readLoop(s *Session, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			b.handleClose(s, err)
			return
		}
		b.handleMessage(s, data)
	}
}

func (b *TerminalBridge) handleMessage(s *Session, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.state != StateOpen || s.view == nil {
		return
	}
	text := string(data)
	s.view.Write(text)
	if s.recorder != nil {
		s.recorder.RecordOutput(text)
	}
}

// handleClose is the transport going away on its own. It tears down like
// Disconnect; anything but a normal close is also reported.
func (b *TerminalBridge) handleClose(s *Session, err error) {
	b.mu.Lock()
	if s.state != StateOpen {
		b.mu.Unlock()
		return
	}

	var n *notice
	if isAbnormalClose(err) {
		log.Printf("[%s] Connection lost: %v\n", s.tag(), err)
		n = &notice{NoticeTransport, "Connection error: " + err.Error()}
	} else {
		log.Printf("[%s] Connection closed by server\n", s.tag())
	}
	finish := b.teardownLocked(s, n)
	b.mu.Unlock()
	finish()
}

// Disconnect tears down the current session. Without an open session it
// tells the user there is no connection and returns ErrNoConnection.
func (b *TerminalBridge) Disconnect() error {
	b.mu.Lock()
	s := b.session
	if s == nil || s.state == StateIdle || s.state == StateClosed {
		b.mu.Unlock()
		b.opts.Notifier.Notify(NoticeNoConnection, "No connection!")
		return ErrNoConnection
	}
	finish := b.teardownLocked(s, nil)
	b.mu.Unlock()
	finish()

	log.Printf("[%s] Disconnected\n", s.tag())
	return nil
}

// notice is shown when a teardown finishes, after the view is destroyed and
// before Done is closed.
type notice struct {
	kind NoticeKind
	msg  string
}

// teardownLocked detaches handlers, stops the keepalive, closes the socket
// and destroys the view. Later transport events see StateClosed and are
// ignored. The returned finish must be called once b.mu is released: it
// shows n, then closes done, so a Notifier may call back into the bridge.
func (b *TerminalBridge) teardownLocked(s *Session, n *notice) (finish func()) {
	b.setStateLocked(s, StateClosed)

	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	if s.view != nil {
		s.view.Destroy()
		s.view = nil
	}
	if s.recorder != nil {
		s.recorder.Close()
		s.recorder = nil
	}
	return func() {
		if n != nil {
			b.opts.Notifier.Notify(n.kind, n.msg)
		}
		close(s.done)
	}
}

func (b *TerminalBridge) setStateLocked(s *Session, to State) {
	from := s.state
	s.state = to
	if b.opts.Verbose {
		log.Printf("[%s] %s -> %s\n", s.tag(), from, to)
	}
	if b.opts.OnStateChange != nil {
		b.opts.OnStateChange(from, to)
	}
}
