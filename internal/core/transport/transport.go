// Package transport owns the single live connection to the world server:
// dialing, frame decoding, command sends and reconnection.
package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/extensivelabs/agentecs-viz/internal/core/clock"
	"github.com/extensivelabs/agentecs-viz/internal/core/observability/log"
	"github.com/extensivelabs/agentecs-viz/internal/core/protocol"
)

// Envelope is a decoded inbound message tagged with the connection
// generation it arrived on.
type Envelope struct {
	Generation uint64
	Message    protocol.Message
	ReceivedAt time.Time
}

type (
	MessageHandler     func(env Envelope)
	StateChangeHandler func(state ConnectionState)
)

// Stats are best-effort counters over the transport's lifetime.
type Stats struct {
	FramesReceived  uint64
	FramesDropped   uint64
	CommandsSent    uint64
	CommandsDropped uint64
	Reconnects      uint64
}

// Transport keeps at most one connection alive. Each connection gets a fresh
// generation; callbacks from an older generation are discarded.
type Transport struct {
	url    string
	dialer Dialer
	clock  clock.Clock
	policy ReconnectPolicy
	logger log.Log

	mu             sync.Mutex
	state          ConnectionState
	conn           Conn
	session        string
	generation     uint64
	attempt        int
	intentional    bool
	parent         context.Context
	cancelDial     context.CancelFunc
	reconnectTimer clock.Timer
	dialTimeout    time.Duration

	handlerMu      sync.RWMutex
	messageHandler MessageHandler
	stateHandlers  []StateChangeHandler

	framesReceived  uint64
	framesDropped   uint64
	commandsSent    uint64
	commandsDropped uint64
	reconnects      uint64
}

// New creates a disconnected transport for url.
func New(url string, cfg Config, dialer Dialer, clk clock.Clock, logger log.Log) *Transport {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Transport{
		url:         url,
		dialer:      dialer,
		clock:       clk,
		policy:      cfg.Policy(),
		dialTimeout: cfg.DialTimeout,
		logger:      logger.Named("transport"),
		state:       StateDisconnected,
		parent:      context.Background(),
	}
}

// OnMessage sets the single consumer of decoded messages.
func (t *Transport) OnMessage(handler MessageHandler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.messageHandler = handler
}

// OnStateChange registers a state listener. Listeners run outside the
// transport lock and may call back into the transport.
func (t *Transport) OnStateChange(handler StateChangeHandler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.stateHandlers = append(t.stateHandlers, handler)
}

func (t *Transport) URL() string {
	return t.url
}

func (t *Transport) State() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Session is a random id for the current connection, empty when not connected.
func (t *Transport) Session() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// IsCurrent reports whether gen still identifies the live connection.
func (t *Transport) IsCurrent(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.generation && !t.intentional
}

func (t *Transport) Stats() Stats {
	return Stats{
		FramesReceived:  atomic.LoadUint64(&t.framesReceived),
		FramesDropped:   atomic.LoadUint64(&t.framesDropped),
		CommandsSent:    atomic.LoadUint64(&t.commandsSent),
		CommandsDropped: atomic.LoadUint64(&t.commandsDropped),
		Reconnects:      atomic.LoadUint64(&t.reconnects),
	}
}

// Connect tears down any previous connection and starts dialing in the
// background. ctx bounds the lifetime of this connection and of every
// reconnect that follows it. The attempt counter starts from zero.
func (t *Transport) Connect(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	t.mu.Lock()
	t.teardownLocked()
	t.intentional = false
	t.attempt = 0
	t.parent = ctx
	gen := t.generation
	changed := t.setStateLocked(StateConnecting)
	state := StateConnecting
	dialCtx := t.dialContextLocked()
	t.mu.Unlock()

	t.logger.Info("Connecting to server", log.String("url", t.url))
	t.notify(changed, state)

	go t.dial(dialCtx, gen)
}

// Disconnect closes the connection on purpose. Pending reconnects are
// cancelled and no new ones are scheduled.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.intentional = true
	t.teardownLocked()
	changed := t.setStateLocked(StateDisconnected)
	state := StateDisconnected
	t.mu.Unlock()

	if changed {
		t.logger.Info("Disconnected from server")
	}
	t.notify(changed, state)
}

// Send writes cmd when connected and reports whether it went out. Commands
// are never queued: a command issued while offline is dropped so it cannot
// fire late after a reconnect.
func (t *Transport) Send(cmd protocol.Command) bool {
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		t.logger.Warn("Refusing invalid command", log.String("command", cmd.String()), log.Error(err))
		atomic.AddUint64(&t.commandsDropped, 1)
		return false
	}

	t.mu.Lock()
	conn := t.conn
	connected := t.state == StateConnected && conn != nil
	t.mu.Unlock()

	if !connected {
		t.logger.Debug("Dropping command while offline", log.String("command", cmd.String()))
		atomic.AddUint64(&t.commandsDropped, 1)
		return false
	}

	if err := conn.WriteFrame(data); err != nil {
		t.logger.Warn("Failed to send command", log.String("command", cmd.String()), log.Error(err))
		atomic.AddUint64(&t.commandsDropped, 1)
		return false
	}

	t.logger.Debug("Command sent", log.String("command", cmd.String()))
	atomic.AddUint64(&t.commandsSent, 1)
	return true
}

func (t *Transport) dial(ctx context.Context, gen uint64) {
	conn, err := t.dialer.Dial(ctx, t.url)

	t.mu.Lock()
	if gen != t.generation || t.intentional {
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		t.mu.Unlock()
		t.logger.Warn("Failed to connect", log.String("url", t.url), log.Error(err))
		t.connectionLost(gen, err)
		return
	}

	t.conn = conn
	t.attempt = 0
	t.session = uuid.NewString()
	changed := t.setStateLocked(StateConnected)
	state := StateConnected
	session := t.session
	t.mu.Unlock()

	t.logger.Info("Connected to server",
		log.String("remote_addr", conn.RemoteAddr()),
		log.String("session", session),
		log.Uint64("generation", gen))
	t.notify(changed, state)

	go t.readLoop(conn, gen)
}

func (t *Transport) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadFrame()
		if err != nil {
			t.connectionLost(gen, err)
			return
		}
		atomic.AddUint64(&t.framesReceived, 1)

		msg, err := protocol.Decode(data)
		if err != nil {
			atomic.AddUint64(&t.framesDropped, 1)
			t.logger.Debug("Dropping frame", log.Int("bytes", len(data)), log.Error(err))
			continue
		}

		if !t.IsCurrent(gen) {
			return
		}

		t.handlerMu.RLock()
		handler := t.messageHandler
		t.handlerMu.RUnlock()
		if handler != nil {
			handler(Envelope{Generation: gen, Message: msg, ReceivedAt: t.clock.Now()})
		}
	}
}

// connectionLost handles an unexpected close or failed handshake on gen.
func (t *Transport) connectionLost(gen uint64, cause error) {
	t.mu.Lock()
	if gen != t.generation || t.intentional {
		t.mu.Unlock()
		return
	}

	t.teardownLocked()
	changed := t.setStateLocked(StateError)
	state := StateError

	delay, ok := t.policy.Delay(t.attempt)
	if ok && t.parent.Err() == nil {
		t.attempt++
		attempt := t.attempt
		timerGen := t.generation
		t.reconnectTimer = t.clock.AfterFunc(delay, func() { t.reconnect(timerGen) })
		t.mu.Unlock()

		t.logger.Warn("Connection lost, scheduling reconnect",
			log.Int("attempt", attempt),
			log.Duration("delay", delay),
			log.Error(cause))
	} else {
		attempts := t.attempt
		t.mu.Unlock()

		t.logger.Error("Connection lost, giving up",
			log.Int("attempts", attempts),
			log.Error(cause))
	}
	t.notify(changed, state)
}

func (t *Transport) reconnect(gen uint64) {
	t.mu.Lock()
	if gen != t.generation || t.intentional {
		t.mu.Unlock()
		return
	}
	t.reconnectTimer = nil
	changed := t.setStateLocked(StateConnecting)
	state := StateConnecting
	dialCtx := t.dialContextLocked()
	t.mu.Unlock()

	atomic.AddUint64(&t.reconnects, 1)
	t.logger.Info("Reconnection attempt", log.Uint64("generation", gen))
	t.notify(changed, state)

	t.dial(dialCtx, gen)
}

// teardownLocked invalidates the current generation and releases every
// resource tied to it.
func (t *Transport) teardownLocked() {
	t.generation++
	if t.reconnectTimer != nil {
		t.reconnectTimer.Stop()
		t.reconnectTimer = nil
	}
	if t.cancelDial != nil {
		t.cancelDial()
		t.cancelDial = nil
	}
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.session = ""
}

func (t *Transport) dialContextLocked() context.Context {
	ctx, cancel := context.WithCancel(t.parent)
	if t.dialTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, t.dialTimeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}
	t.cancelDial = cancel
	return ctx
}

func (t *Transport) setStateLocked(state ConnectionState) bool {
	if t.state == state {
		return false
	}
	t.state = state
	return true
}

func (t *Transport) notify(changed bool, state ConnectionState) {
	if !changed {
		return
	}

	t.handlerMu.RLock()
	handlers := make([]StateChangeHandler, len(t.stateHandlers))
	copy(handlers, t.stateHandlers)
	t.handlerMu.RUnlock()

	for _, h := range handlers {
		h(state)
	}
}
