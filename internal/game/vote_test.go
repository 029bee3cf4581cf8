package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OktayBayram/nyx-game/internal/models"
)

// seqRand returns the queued values in order and records every call.
type seqRand struct {
	vals  []int
	calls []int
}

func (s *seqRand) Intn(n int) int {
	s.calls = append(s.calls, n)
	if len(s.vals) == 0 {
		return 0
	}
	v := s.vals[0]
	s.vals = s.vals[1:]
	return v % n
}

var crossroads = models.Passage{
	ID:   "Crossroads",
	Text: "Two roads.",
	Choices: []models.Choice{
		{Label: "left", TargetID: "A"},
		{Label: "right", TargetID: "B"},
		{Label: "back", TargetID: "C"},
	},
}

func voters(ids ...string) []Voter {
	out := make([]Voter, 0, len(ids))
	for _, id := range ids {
		out = append(out, Voter{ID: id, Username: "name-" + id})
	}
	return out
}

func TestVoteRound_MajorityWins(t *testing.T) {
	rng := &seqRand{}
	v := NewVoteRound(1, crossroads, voters("p1", "p2", "p3"), rng)

	require.NoError(t, v.Cast("p1", "A"))
	require.NoError(t, v.Cast("p2", "right"))
	assert.False(t, v.IsComplete())
	require.NoError(t, v.Cast("p3", "left"))
	assert.True(t, v.IsComplete())

	res, err := v.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "A", res.NextPassage)
	assert.Equal(t, "left", res.Choice)
	assert.False(t, res.Tie)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, res.VoteCounts)
	assert.Equal(t, []string{"name-p1", "name-p3"}, res.VotersByChoice["A"])
	assert.Empty(t, rng.calls, "no draw without a tie")
}

func TestVoteRound_ResolveBeforeCompleteFails(t *testing.T) {
	v := NewVoteRound(1, crossroads, voters("p1", "p2"), &seqRand{})
	require.NoError(t, v.Cast("p1", "A"))

	_, err := v.Resolve()
	assert.ErrorIs(t, err, ErrRoundIncomplete)
	assert.False(t, v.Closed())
}

func TestVoteRound_ResolveIsIdempotent(t *testing.T) {
	rng := &seqRand{vals: []int{1, 0, 0}}
	v := NewVoteRound(1, crossroads, voters("p1", "p2"), rng)
	require.NoError(t, v.Cast("p1", "A"))
	require.NoError(t, v.Cast("p2", "B"))

	first, err := v.Resolve()
	require.NoError(t, err)
	second, err := v.Resolve()
	require.NoError(t, err)

	assert.True(t, first.Tie)
	assert.Contains(t, []string{"A", "B"}, first.NextPassage)
	assert.Equal(t, "B", first.NextPassage, "second sorted leader drawn")
	assert.Equal(t, first, second)
	assert.Equal(t, []int{2}, rng.calls, "tie is broken with exactly one draw")
}

func TestVoteRound_TieBreakCoversAllLeaders(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		v := NewVoteRound(1, crossroads, voters("p1", "p2"), &seqRand{vals: []int{i}})
		require.NoError(t, v.Cast("p1", "A"))
		require.NoError(t, v.Cast("p2", "B"))
		res, err := v.Resolve()
		require.NoError(t, err)
		seen[res.NextPassage] = true
	}
	assert.Equal(t, map[string]bool{"A": true, "B": true}, seen)
}

func TestVoteRound_DepartureCompletesRound(t *testing.T) {
	v := NewVoteRound(1, crossroads, voters("p1", "p2", "p3"), &seqRand{})
	require.NoError(t, v.Cast("p1", "B"))
	require.NoError(t, v.Cast("p2", "B"))
	assert.False(t, v.IsComplete())

	assert.True(t, v.RemoveVoter("p3"))
	assert.True(t, v.IsComplete())

	res, err := v.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "B", res.NextPassage)
	assert.Equal(t, map[string]int{"B": 2}, res.VoteCounts)
}

func TestVoteRound_DepartedBallotIsDiscarded(t *testing.T) {
	v := NewVoteRound(1, crossroads, voters("p1", "p2", "p3"), &seqRand{})
	require.NoError(t, v.Cast("p1", "C"))
	require.NoError(t, v.Cast("p2", "A"))

	v.RemoveVoter("p1")
	assert.Equal(t, models.Tally{Votes: 1, Total: 2, VotersByChoice: map[string][]string{"A": {"name-p2"}}}, v.Tally())
	assert.False(t, v.RemoveVoter("p1"), "already gone")
}

func TestVoteRound_InvalidTargetLeavesTally(t *testing.T) {
	v := NewVoteRound(1, crossroads, voters("p1", "p2"), &seqRand{})
	require.NoError(t, v.Cast("p1", "A"))

	err := v.Cast("p2", "Nowhere")
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.False(t, v.HasVoted("p2"))
	assert.Equal(t, 1, v.Tally().Votes)
}

func TestVoteRound_DoubleVoteKeepsFirstBallot(t *testing.T) {
	v := NewVoteRound(1, crossroads, voters("p1", "p2"), &seqRand{})
	require.NoError(t, v.Cast("p1", "A"))

	err := v.Cast("p1", "B")
	assert.ErrorIs(t, err, ErrAlreadyVoted)
	assert.Equal(t, []string{"name-p1"}, v.Tally().VotersByChoice["A"])
	assert.Empty(t, v.Tally().VotersByChoice["B"])
}

func TestVoteRound_NotInRound(t *testing.T) {
	v := NewVoteRound(1, crossroads, voters("p1"), &seqRand{})
	assert.ErrorIs(t, v.Cast("stranger", "A"), ErrNotInRound)

	require.NoError(t, v.Cast("p1", "A"))
	_, err := v.Resolve()
	require.NoError(t, err)
	assert.ErrorIs(t, v.Cast("p1", "B"), ErrNotInRound, "closed round")
	assert.False(t, v.RemoveVoter("p1"), "closed rounds are frozen")
}

func TestVoteRound_EveryoneLeftDrawsAmongChoices(t *testing.T) {
	rng := &seqRand{vals: []int{2}}
	v := NewVoteRound(1, crossroads, voters("p1"), rng)
	v.RemoveVoter("p1")

	res, err := v.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "C", res.NextPassage)
	assert.Equal(t, "back", res.Choice)
	assert.Empty(t, res.VoteCounts)
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := Errorf(CodeRoomFull, "Room %s is full", "ABCD")
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.NotErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, "Room ABCD is full", err.Error())
}
