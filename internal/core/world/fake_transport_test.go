package world

import (
	"context"
	"sync"
	"time"

	"github.com/extensivelabs/agentecs-viz/internal/core/models"
	"github.com/extensivelabs/agentecs-viz/internal/core/protocol"
	"github.com/extensivelabs/agentecs-viz/internal/core/transport"
)

// fakeTransport connects instantly and records what was sent.
type fakeTransport struct {
	mu        sync.Mutex
	gen       uint64
	state     transport.ConnectionState
	sent      []protocol.Command
	onMessage transport.MessageHandler
	onState   []transport.StateChangeHandler
	connects  int
}

func (f *fakeTransport) Connect(_ context.Context) {
	f.mu.Lock()
	f.connects++
	f.gen++
	f.mu.Unlock()
	f.setState(transport.StateConnected)
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.gen++
	f.mu.Unlock()
	f.setState(transport.StateDisconnected)
}

func (f *fakeTransport) Send(cmd protocol.Command) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != transport.StateConnected {
		return false
	}
	f.sent = append(f.sent, cmd)
	return true
}

func (f *fakeTransport) IsCurrent(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen == f.gen
}

func (f *fakeTransport) State() transport.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) OnMessage(h transport.MessageHandler) {
	f.onMessage = h
}

func (f *fakeTransport) OnStateChange(h transport.StateChangeHandler) {
	f.onState = append(f.onState, h)
}

func (f *fakeTransport) setState(state transport.ConnectionState) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
	for _, h := range f.onState {
		h(state)
	}
}

// dropConnection simulates an unexpected close followed by a new connection.
func (f *fakeTransport) dropConnection() uint64 {
	f.mu.Lock()
	old := f.gen
	f.gen++
	f.mu.Unlock()
	f.setState(transport.StateError)
	return old
}

func (f *fakeTransport) generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

func (f *fakeTransport) deliver(msg protocol.Message) {
	f.deliverOn(f.generation(), msg)
}

func (f *fakeTransport) deliverOn(gen uint64, msg protocol.Message) {
	f.onMessage(transport.Envelope{Generation: gen, Message: msg, ReceivedAt: time.Unix(0, 0)})
}

// takeSent returns and clears the recorded commands.
func (f *fakeTransport) takeSent() []protocol.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sent
	f.sent = nil
	return out
}

func entity(id models.EntityID, comps ...models.Component) models.Entity {
	e := models.Entity{ID: id, Components: comps}
	for _, c := range comps {
		e.Archetype = append(e.Archetype, c.TypeShort)
	}
	return e
}

func component(typeShort string, data map[string]any) models.Component {
	return models.Component{TypeFull: "game." + typeShort, TypeShort: typeShort, Data: data}
}

func snapshotMsg(tick int64, entities ...models.Entity) protocol.Snapshot {
	return protocol.Snapshot{
		Tick: tick,
		Snapshot: &models.WorldSnapshot{
			Tick:        tick,
			EntityCount: len(entities),
			Entities:    entities,
		},
	}
}

func metadataMsg(tick int64, r *protocol.TickRange, history, paused bool) protocol.Metadata {
	return protocol.Metadata{
		Tick:            tick,
		Config:          map[string]any{"seed": 1},
		TickRange:       r,
		SupportsHistory: history,
		IsPaused:        paused,
	}
}

func tickRange(lo, hi int64) *protocol.TickRange {
	return &protocol.TickRange{Min: lo, Max: hi}
}
