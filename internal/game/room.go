package game

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/OktayBayram/nyx-game/internal/models"
	"github.com/OktayBayram/nyx-game/internal/story"
)

// State is a room's lifecycle phase.
type State string

const (
	StateLobby     State = "lobby"
	StateCountdown State = "countdown"
	StatePlaying   State = "playing"
	StateEnded     State = "ended"
)

const (
	maxUsernameLen = 24
	maxChatLen     = 500
)

// Options tune room policy. Unset capacity bounds, Rand and Now fall back to
// DefaultOptions; a CountdownSeconds of 0 starts the game without a countdown.
type Options struct {
	CountdownSeconds int
	RequireReady     bool
	MinCapacity      int
	MaxCapacity      int
	Rand             Rand
	Now              func() time.Time
}

// DefaultOptions returns the policy used when a field is left unset.
func DefaultOptions() Options {
	return Options{
		CountdownSeconds: 3,
		MinCapacity:      1,
		MaxCapacity:      8,
		Now:              time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CountdownSeconds < 0 {
		o.CountdownSeconds = 0
	}
	if o.MinCapacity < 1 {
		o.MinCapacity = d.MinCapacity
	}
	if o.MaxCapacity < o.MinCapacity {
		o.MaxCapacity = d.MaxCapacity
	}
	if o.Rand == nil {
		o.Rand = NewRand()
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Player is one room member.
type Player struct {
	ID        string
	Username  string
	Ready     bool
	Connected bool
}

// Room is the authoritative state of one session. It is not safe for
// concurrent use: callers serialize every operation on a room.
//
// Every operation returns the messages the room wants delivered instead of
// sending them, so the state machine can be driven without a transport.
type Room struct {
	code     string
	capacity int
	graph    *story.Graph
	opts     Options

	players []*Player
	hostID  string
	state   State

	countdown int
	passageID string
	round     *VoteRound
	rounds    int
	skipped   bool
	path      []string
	startedAt time.Time
	endedAt   time.Time
}

// NewRoom creates a room in Lobby with the creator as sole player and host.
func NewRoom(code string, capacity int, hostID, hostName string, graph *story.Graph, opts Options) (*Room, error) {
	opts = opts.withDefaults()
	if capacity < opts.MinCapacity || capacity > opts.MaxCapacity {
		return nil, Errorf(CodeInvalidCapacity, "Capacity must be between %d and %d", opts.MinCapacity, opts.MaxCapacity)
	}
	name, err := normalizeUsername(hostName)
	if err != nil {
		return nil, err
	}
	r := &Room{
		code:     code,
		capacity: capacity,
		graph:    graph,
		opts:     opts,
		hostID:   hostID,
		state:    StateLobby,
	}
	r.players = []*Player{{ID: hostID, Username: name, Ready: true, Connected: true}}
	return r, nil
}

func normalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidUsername
	}
	if utf8.RuneCountInString(name) > maxUsernameLen {
		return "", Errorf(CodeInvalidUsername, "Username must be at most %d characters", maxUsernameLen)
	}
	return name, nil
}

func (r *Room) Code() string      { return r.code }
func (r *Room) Capacity() int     { return r.capacity }
func (r *Room) State() State      { return r.state }
func (r *Room) HostID() string    { return r.hostID }
func (r *Room) PassageID() string { return r.passageID }

// Round returns the open vote round, or nil outside Playing.
func (r *Room) Round() *VoteRound { return r.round }

// Countdown returns the seconds left while in Countdown.
func (r *Room) Countdown() int { return r.countdown }

// Len returns the roster size, connected or not.
func (r *Room) Len() int { return len(r.players) }

// Empty reports whether no connected player is left.
func (r *Room) Empty() bool {
	for _, p := range r.players {
		if p.Connected {
			return false
		}
	}
	return true
}

// Player looks up a member by id.
func (r *Room) Player(id string) (*Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

func (r *Room) indexOf(id string) int {
	for i, p := range r.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// View projects the room for clients.
func (r *Room) View() models.RoomView {
	v := models.RoomView{
		Code:             r.code,
		Capacity:         r.capacity,
		State:            string(r.state),
		HostPlayerID:     r.hostID,
		Players:          make([]models.PlayerView, 0, len(r.players)),
		CurrentPassageID: r.passageID,
		Round:            r.rounds,
		GameStarted:      r.state == StatePlaying || r.state == StateEnded,
	}
	for _, p := range r.players {
		v.Players = append(v.Players, models.PlayerView{
			ID:        p.ID,
			Username:  p.Username,
			IsHost:    p.ID == r.hostID,
			Ready:     p.Ready,
			Connected: p.Connected,
		})
	}
	return v
}

// Snapshot is the full state for playerID, used on join and resume.
func (r *Room) Snapshot(playerID string) StatePayload {
	s := StatePayload{Room: r.View(), Skipped: r.skipped}
	if r.passageID != "" {
		if p, err := r.graph.Resolve(r.passageID); err == nil {
			s.Passage = &p
		}
	}
	if r.round != nil {
		t := r.round.Tally()
		s.Tally = &t
		s.Voted = r.round.HasVoted(playerID)
	}
	return s
}

// Session returns the archive record of an ended game.
func (r *Room) Session() models.Session {
	names := make([]string, 0, len(r.players))
	for _, p := range r.players {
		names = append(names, p.Username)
	}
	return models.Session{
		Code:      r.code,
		Ending:    r.passageID,
		Path:      append([]string(nil), r.path...),
		Players:   names,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
	}
}

func (r *Room) connectedIDs() []string {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		if p.Connected {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (r *Room) othersIDs(except string) []string {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		if p.Connected && p.ID != except {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (r *Room) broadcast(event string, payload any) Outbound {
	return Outbound{To: r.connectedIDs(), Event: event, Payload: payload}
}

func (r *Room) readyUpdate() Outbound {
	ready := 0
	for _, p := range r.players {
		if p.Ready {
			ready++
		}
	}
	return r.broadcast(EventReadyUpdate, ReadyPayload{Ready: ready, Total: len(r.players)})
}

// Join adds a player to a room that is still in Lobby.
func (r *Room) Join(playerID, username string) ([]Outbound, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if r.state != StateLobby {
		return nil, ErrAlreadyStarted
	}
	if r.indexOf(playerID) >= 0 {
		return nil, Errorf(CodeBadRequest, "Already in this room")
	}
	if len(r.players) >= r.capacity {
		return nil, ErrRoomFull
	}
	r.players = append(r.players, &Player{ID: playerID, Username: name, Connected: true})
	return []Outbound{
		r.broadcast(EventPlayerJoined, RoomPayload{Room: r.View()}),
		r.readyUpdate(),
	}, nil
}

// Leave removes a player for good.
func (r *Room) Leave(playerID string) ([]Outbound, error) {
	if r.indexOf(playerID) < 0 {
		return nil, ErrNotInRoom
	}
	return r.remove(playerID), nil
}

// Disconnect handles a dropped connection. Before the game starts the seat is
// freed; once it has started the player stays on the roster, marked as
// disconnected, so it can resume.
func (r *Room) Disconnect(playerID string) []Outbound {
	p, ok := r.Player(playerID)
	if !ok || !p.Connected {
		return nil
	}
	if r.state == StateLobby || r.state == StateCountdown {
		return r.remove(playerID)
	}

	p.Connected = false
	var out []Outbound
	dropped := r.dropVoter(playerID)
	if r.hostID == playerID {
		out = append(out, r.promoteHost()...)
	}
	out = append(out, r.broadcast(EventPlayerLeft, RoomPayload{Room: r.View()}))
	out = append(out, r.shrunkTally(dropped)...)
	return append(out, r.advanceIfComplete()...)
}

// Resume reattaches a disconnected player.
func (r *Room) Resume(playerID string) ([]Outbound, error) {
	p, ok := r.Player(playerID)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if p.Connected {
		return nil, Errorf(CodeBadRequest, "Already connected")
	}
	p.Connected = true
	return []Outbound{r.broadcast(EventPlayerJoined, RoomPayload{Room: r.View()})}, nil
}

func (r *Room) remove(playerID string) []Outbound {
	i := r.indexOf(playerID)
	if i < 0 {
		return nil
	}
	r.players = append(r.players[:i], r.players[i+1:]...)

	var out []Outbound
	if r.state == StateCountdown {
		r.state = StateLobby
		r.countdown = 0
		out = append(out, r.broadcast(EventCountdownCancelled, empty{}))
	}
	dropped := r.dropVoter(playerID)
	if r.hostID == playerID && len(r.players) > 0 {
		out = append(out, r.promoteHost()...)
	}
	out = append(out, r.broadcast(EventPlayerLeft, RoomPayload{Room: r.View()}))
	if r.state == StateLobby {
		out = append(out, r.readyUpdate())
	}
	out = append(out, r.shrunkTally(dropped)...)
	return append(out, r.advanceIfComplete()...)
}

func (r *Room) dropVoter(playerID string) bool {
	return r.round != nil && r.round.RemoveVoter(playerID)
}

// shrunkTally re-announces the tally of a round that lost a voter but is
// still waiting on others.
func (r *Room) shrunkTally(dropped bool) []Outbound {
	if !dropped || r.round.IsComplete() || len(r.connectedIDs()) == 0 {
		return nil
	}
	return []Outbound{r.broadcast(EventVoteUpdate, r.round.Tally())}
}

// promoteHost hands the host role to the oldest connected player, falling
// back to the oldest remaining one.
func (r *Room) promoteHost() []Outbound {
	var next *Player
	for _, p := range r.players {
		if p.ID == r.hostID {
			continue
		}
		if p.Connected {
			next = p
			break
		}
		if next == nil {
			next = p
		}
	}
	if next == nil {
		return nil
	}
	r.hostID = next.ID
	next.Ready = true
	return []Outbound{r.broadcast(EventHostChanged, HostChangedPayload{HostPlayerID: next.ID})}
}

// Kick removes targetID on behalf of the host.
func (r *Room) Kick(hostID, targetID string) ([]Outbound, error) {
	if hostID != r.hostID {
		return nil, ErrNotHost
	}
	if targetID == hostID {
		return nil, ErrCannotKickSelf
	}
	p, ok := r.Player(targetID)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	var out []Outbound
	if p.Connected {
		out = append(out, Outbound{To: []string{targetID}, Event: EventKicked, Payload: empty{}})
	}
	return append(out, r.remove(targetID)...), nil
}

// SetReady toggles a non-host player's ready flag. The host is always ready.
func (r *Room) SetReady(playerID string, ready bool) ([]Outbound, error) {
	p, ok := r.Player(playerID)
	if !ok {
		return nil, ErrNotInRoom
	}
	if r.state != StateLobby {
		return nil, ErrAlreadyStarted
	}
	if playerID != r.hostID {
		p.Ready = ready
	}
	return []Outbound{r.readyUpdate()}, nil
}

func (r *Room) allReady() bool {
	for _, p := range r.players {
		if p.ID != r.hostID && !p.Ready {
			return false
		}
	}
	return true
}

// Start moves the room from Lobby into Countdown. The caller drives the
// countdown with Tick.
func (r *Room) Start(playerID string) ([]Outbound, error) {
	if r.indexOf(playerID) < 0 {
		return nil, ErrNotInRoom
	}
	if playerID != r.hostID {
		return nil, ErrNotHost
	}
	if r.state != StateLobby {
		return nil, ErrAlreadyStarted
	}
	if len(r.players) != r.capacity {
		return nil, ErrNotEnoughPlayers
	}
	if r.opts.RequireReady && !r.allReady() {
		return nil, ErrNotReady
	}
	if r.opts.CountdownSeconds == 0 {
		return r.begin(), nil
	}
	r.state = StateCountdown
	r.countdown = r.opts.CountdownSeconds
	return []Outbound{r.broadcast(EventCountdown, CountdownPayload{Seconds: r.countdown})}, nil
}

// Tick advances the countdown by one second. It is a no-op outside
// Countdown, which makes stale timer ticks harmless.
func (r *Room) Tick() []Outbound {
	if r.state != StateCountdown {
		return nil
	}
	r.countdown--
	if r.countdown > 0 {
		return []Outbound{r.broadcast(EventCountdown, CountdownPayload{Seconds: r.countdown})}
	}
	return r.begin()
}

func (r *Room) begin() []Outbound {
	r.state = StatePlaying
	r.countdown = 0
	r.rounds = 0
	r.startedAt = r.opts.Now()
	r.path = []string{r.graph.Start()}
	out := []Outbound{r.broadcast(EventGameStarted, empty{})}
	return append(out, r.enter(r.graph.Start())...)
}

// enter moves the room onto a passage, opening a new round or ending the
// game when the passage is terminal.
func (r *Room) enter(id string) []Outbound {
	p, err := r.graph.Resolve(id)
	if err != nil {
		// unreachable with a validated graph; end instead of stalling
		p = models.Passage{ID: id, Choices: []models.Choice{}}
	}
	r.passageID = id
	r.skipped = false

	if p.IsTerminal() {
		r.state = StateEnded
		r.round = nil
		r.endedAt = r.opts.Now()
		return []Outbound{r.broadcast(EventGameEnded, GameEndedPayload{Passage: p, Path: append([]string(nil), r.path...)})}
	}

	r.rounds++
	voters := make([]Voter, 0, len(r.players))
	for _, pl := range r.players {
		if pl.Connected {
			voters = append(voters, Voter{ID: pl.ID, Username: pl.Username})
		}
	}
	r.round = NewVoteRound(r.rounds, p, voters, r.opts.Rand)
	return []Outbound{r.broadcast(EventPassage, PassagePayload{Passage: p, Round: r.rounds})}
}

// Vote casts a ballot in the open round and advances the story when the
// round completes.
func (r *Room) Vote(playerID, choice string) ([]Outbound, error) {
	if r.indexOf(playerID) < 0 {
		return nil, ErrNotInRoom
	}
	if r.state != StatePlaying || r.round == nil {
		return nil, ErrNotInRound
	}
	if err := r.round.Cast(playerID, choice); err != nil {
		return nil, err
	}
	out := []Outbound{r.broadcast(EventVoteUpdate, r.round.Tally())}
	return append(out, r.advanceIfComplete()...), nil
}

func (r *Room) advanceIfComplete() []Outbound {
	if r.state != StatePlaying || r.round == nil || !r.round.IsComplete() {
		return nil
	}
	if len(r.connectedIDs()) == 0 {
		return nil
	}
	res, err := r.round.Resolve()
	if err != nil {
		return nil
	}
	if r.graph.IsEnding(res.NextPassage) {
		res.Achievement = r.achievement(res.NextPassage)
	}
	r.path = append(r.path, res.NextPassage)
	out := []Outbound{r.broadcast(EventVoteResult, res)}
	return append(out, r.enter(res.NextPassage)...)
}

func (r *Room) achievement(ending string) *models.Achievement {
	label := ending
	if p, err := r.graph.Resolve(ending); err == nil && p.Text != "" {
		label = firstLine(p.Text)
	}
	return &models.Achievement{Key: "ending:" + ending, Label: label}
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) > 60 {
		line = string([]rune(line)[:60])
	}
	return line
}

// SkipText marks the current passage's reveal as finished for everyone.
// Requests naming any other passage are stale and ignored.
func (r *Room) SkipText(playerID, passageID string) ([]Outbound, error) {
	if r.indexOf(playerID) < 0 {
		return nil, ErrNotInRoom
	}
	if r.state != StatePlaying && r.state != StateEnded {
		return nil, nil
	}
	if passageID != r.passageID || r.skipped {
		return nil, nil
	}
	r.skipped = true
	return []Outbound{r.broadcast(EventTextSkipped, TextSkippedPayload{Passage: passageID})}, nil
}

// Chat relays a lobby message to the other members. The sender's name is
// always the registered username.
func (r *Room) Chat(playerID, text, sentAt string) ([]Outbound, error) {
	p, ok := r.Player(playerID)
	if !ok {
		return nil, ErrNotInRoom
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, Errorf(CodeBadRequest, "Message is empty")
	}
	if utf8.RuneCountInString(text) > maxChatLen {
		return nil, Errorf(CodeBadRequest, "Message must be at most %d characters", maxChatLen)
	}
	return []Outbound{{
		To:      r.othersIDs(playerID),
		Event:   EventLobbyChat,
		Payload: ChatPayload{User: p.Username, Text: text, Time: sentAt},
	}}, nil
}

// Restart takes an ended room back to Lobby. Disconnected players are
// dropped since they can no longer take a seat.
func (r *Room) Restart(playerID string) ([]Outbound, error) {
	if playerID != r.hostID {
		return nil, ErrNotHost
	}
	if r.state != StateEnded {
		return nil, ErrNotEnded
	}
	kept := r.players[:0]
	for _, p := range r.players {
		if p.Connected {
			p.Ready = p.ID == r.hostID
			kept = append(kept, p)
		}
	}
	r.players = kept
	r.state = StateLobby
	r.passageID = ""
	r.round = nil
	r.rounds = 0
	r.skipped = false
	r.path = nil
	return []Outbound{
		r.broadcast(EventGameRestarted, RoomPayload{Room: r.View()}),
		r.readyUpdate(),
	}, nil
}

// Close ends the room on behalf of the host. The caller destroys it.
func (r *Room) Close(playerID string) ([]Outbound, error) {
	if playerID != r.hostID {
		return nil, ErrNotHost
	}
	return []Outbound{r.broadcast(EventRoomClosed, empty{})}, nil
}
