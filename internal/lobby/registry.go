// Package lobby owns the process-wide table of live rooms. It serializes
// operations per room, drives countdown timers, hands finished sessions to
// an archive and destroys rooms once nobody is connected.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/OktayBayram/nyx-game/internal/game"
	"github.com/OktayBayram/nyx-game/internal/models"
	"github.com/OktayBayram/nyx-game/internal/story"
)

// ErrClosed is returned once the registry has been shut down.
var ErrClosed = errors.New("lobby: registry closed")

// Notifier delivers room messages to connections. Deliver is called while
// the room is locked, so it must return without waiting on any connection
// and must not call back into the registry. Every message carries the code
// of its room.
type Notifier interface {
	Deliver(msgs []game.Outbound)
}

// Archive stores finished sessions.
type Archive interface {
	Save(ctx context.Context, s models.Session) error
}

type Options struct {
	Room              game.Options
	CodeLength        int
	CountdownInterval time.Duration
	ArchiveTimeout    time.Duration

	// NewCode and NewRand are replaced in tests.
	NewCode CodeFunc
	NewRand func() game.Rand
}

func (o Options) withDefaults() Options {
	if o.CodeLength < MinCodeLength || o.CodeLength > MaxCodeLength {
		o.CodeLength = DefaultCodeLength
	}
	if o.CountdownInterval <= 0 {
		o.CountdownInterval = time.Second
	}
	if o.ArchiveTimeout <= 0 {
		o.ArchiveTimeout = 5 * time.Second
	}
	if o.NewCode == nil {
		o.NewCode = GenerateCode
	}
	if o.NewRand == nil {
		o.NewRand = game.NewRand
	}
	return o
}

type entry struct {
	mu     sync.Mutex
	room   *game.Room
	stop   context.CancelFunc
	closed bool
}

// Registry is the single owner of every live room.
type Registry struct {
	graph   *story.Graph
	notify  Notifier
	archive Archive
	opts    Options
	log     zerolog.Logger

	mu     sync.RWMutex
	rooms  map[string]*entry
	closed bool
	wg     sync.WaitGroup
}

// New creates an empty registry. archive may be nil.
func New(graph *story.Graph, notify Notifier, archive Archive, opts Options, log zerolog.Logger) *Registry {
	return &Registry{
		graph:   graph,
		notify:  notify,
		archive: archive,
		opts:    opts.withDefaults(),
		log:     log.With().Str("component", "lobby").Logger(),
		rooms:   make(map[string]*entry),
	}
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Codes returns the live room codes, sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	r.mu.RUnlock()
	sort.Strings(codes)
	return codes
}

// Create opens a room with hostID as its only player and host.
func (r *Registry) Create(hostID, username string, capacity int) (game.StatePayload, error) {
	roomOpts := r.opts.Room
	roomOpts.Rand = r.opts.NewRand()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return game.StatePayload{}, ErrClosed
	}

	code, err := r.uniqueCode()
	if err != nil {
		return game.StatePayload{}, err
	}
	room, err := game.NewRoom(code, capacity, hostID, username, r.graph, roomOpts)
	if err != nil {
		return game.StatePayload{}, err
	}
	r.rooms[code] = &entry{room: room}

	r.log.Info().Str("room", code).Str("player", hostID).Int("capacity", capacity).Msg("room created")
	return room.Snapshot(hostID), nil
}

// uniqueCode must be called with r.mu held.
func (r *Registry) uniqueCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := r.opts.NewCode(r.opts.CodeLength)
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("lobby: no free room code after %d attempts", maxCodeAttempts)
}

func (r *Registry) lookup(code string) (*entry, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	r.mu.RLock()
	e, ok := r.rooms[code]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return e, nil
}

// Join adds playerID to the room and returns the joiner's view of it.
func (r *Registry) Join(code, playerID, username string) (game.StatePayload, error) {
	var snap game.StatePayload
	err := r.do(code, func(room *game.Room) ([]game.Outbound, error) {
		out, err := room.Join(playerID, username)
		if err == nil {
			snap = room.Snapshot(playerID)
		}
		return out, err
	})
	return snap, err
}

// Resume reattaches a player that dropped mid-game.
func (r *Registry) Resume(code, playerID string) (game.StatePayload, error) {
	var snap game.StatePayload
	err := r.do(code, func(room *game.Room) ([]game.Outbound, error) {
		out, err := room.Resume(playerID)
		if err == nil {
			snap = room.Snapshot(playerID)
		}
		return out, err
	})
	return snap, err
}

// Leave removes playerID from the room.
func (r *Registry) Leave(code, playerID string) error {
	return r.Apply(code, game.LeaveEvent{PlayerID: playerID})
}

// Disconnect reports a dropped connection. Unknown rooms are ignored.
func (r *Registry) Disconnect(code, playerID string) {
	err := r.Apply(code, game.DisconnectEvent{PlayerID: playerID})
	if err != nil && !errors.Is(err, game.ErrRoomNotFound) && !errors.Is(err, ErrClosed) {
		r.log.Warn().Err(err).Str("room", code).Str("player", playerID).Msg("disconnect")
	}
}

// Kick removes targetID on behalf of hostID.
func (r *Registry) Kick(code, hostID, targetID string) error {
	return r.Apply(code, game.KickEvent{PlayerID: hostID, TargetID: targetID})
}

// Apply runs ev against the room named by code.
func (r *Registry) Apply(code string, ev game.Event) error {
	return r.do(code, func(room *game.Room) ([]game.Outbound, error) {
		return room.Apply(ev)
	})
}

// View returns the public state of a room.
func (r *Registry) View(code string) (models.RoomView, error) {
	e, err := r.lookup(code)
	if err != nil {
		return models.RoomView{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return models.RoomView{}, game.ErrRoomNotFound
	}
	return e.room.View(), nil
}

// do serializes fn against one room and settles the consequences of the
// transition while the room is still locked.
func (r *Registry) do(code string, fn func(*game.Room) ([]game.Outbound, error)) error {
	e, err := r.lookup(code)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return game.ErrRoomNotFound
	}

	prev := e.room.State()
	out, err := fn(e.room)
	if err != nil {
		return err
	}
	r.settle(e, prev, out)
	return nil
}

// settle must be called with e.mu held.
func (r *Registry) settle(e *entry, prev game.State, out []game.Outbound) {
	room := e.room
	r.deliver(room.Code(), out)

	state := room.State()
	if state != prev {
		r.log.Debug().Str("room", room.Code()).Str("from", string(prev)).Str("state", string(state)).Msg("transition")
	}
	switch {
	case state == game.StateCountdown && e.stop == nil:
		r.startCountdown(e)
	case state != game.StateCountdown && e.stop != nil:
		e.stop()
		e.stop = nil
	}
	if state == game.StateEnded && prev != game.StateEnded {
		r.store(room.Session())
	}

	if closing(out) || room.Empty() {
		r.destroy(e)
	}
}

func (r *Registry) deliver(code string, out []game.Outbound) {
	if len(out) == 0 {
		return
	}
	for i := range out {
		out[i].Room = code
	}
	r.notify.Deliver(out)
}

func closing(out []game.Outbound) bool {
	for _, o := range out {
		if o.Event == game.EventRoomClosed {
			return true
		}
	}
	return false
}

// destroy must be called with e.mu held. Lock order is always entry before
// registry.
func (r *Registry) destroy(e *entry) {
	if e.closed {
		return
	}
	e.closed = true
	if e.stop != nil {
		e.stop()
		e.stop = nil
	}
	code := e.room.Code()
	r.mu.Lock()
	if r.rooms[code] == e {
		delete(r.rooms, code)
	}
	r.mu.Unlock()
	r.log.Info().Str("room", code).Msg("room destroyed")
}

func (r *Registry) startCountdown(e *entry) {
	ctx, cancel := context.WithCancel(context.Background())
	e.stop = cancel
	r.wg.Add(1)
	go r.runCountdown(ctx, e)
}

func (r *Registry) runCountdown(ctx context.Context, e *entry) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.CountdownInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.tick(ctx, e) {
				return
			}
		}
	}
}

// tick reports whether the countdown is over.
func (r *Registry) tick(ctx context.Context, e *entry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	// a cancelled countdown may still be racing its last tick
	if ctx.Err() != nil || e.closed {
		return true
	}
	prev := e.room.State()
	out := e.room.Tick()
	if e.room.State() != game.StateCountdown {
		// finished on its own; settle must not cancel a fresh countdown
		e.stop()
		e.stop = nil
	}
	r.settle(e, prev, out)
	return e.room.State() != game.StateCountdown
}

func (r *Registry) store(s models.Session) {
	if r.archive == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.ArchiveTimeout)
		defer cancel()
		if err := r.archive.Save(ctx, s); err != nil {
			r.log.Error().Err(err).Str("room", s.Code).Msg("archive session")
			return
		}
		r.log.Info().Str("room", s.Code).Str("ending", s.Ending).Int("steps", len(s.Path)).Msg("session archived")
	}()
}

// Shutdown closes every room, telling its members, and waits for pending
// timers and archive writes or for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := make([]*entry, 0, len(r.rooms))
	for _, e := range r.rooms {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		if !e.closed {
			out, err := e.room.Close(e.room.HostID())
			if err == nil {
				r.deliver(e.room.Code(), out)
			}
			r.destroy(e)
		}
		e.mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
