package game

import (
	"sort"

	"github.com/OktayBayram/nyx-game/internal/models"
)

// Voter is a required participant of a round.
type Voter struct {
	ID       string
	Username string
}

// VoteRound collects one ballot per required voter for a single passage and
// resolves the outcome once. The required set only ever shrinks: voters that
// leave are dropped together with any ballot they cast.
type VoteRound struct {
	number   int
	passage  models.Passage
	order    []string
	names    map[string]string
	required map[string]struct{}
	ballots  map[string]string
	rng      Rand
	result   *models.VoteResult
}

// NewVoteRound opens a round for passage with the given required voters.
func NewVoteRound(number int, passage models.Passage, voters []Voter, rng Rand) *VoteRound {
	if rng == nil {
		rng = NewRand()
	}
	v := &VoteRound{
		number:   number,
		passage:  passage,
		order:    make([]string, 0, len(voters)),
		names:    make(map[string]string, len(voters)),
		required: make(map[string]struct{}, len(voters)),
		ballots:  make(map[string]string, len(voters)),
		rng:      rng,
	}
	for _, voter := range voters {
		if _, dup := v.required[voter.ID]; dup {
			continue
		}
		v.order = append(v.order, voter.ID)
		v.names[voter.ID] = voter.Username
		v.required[voter.ID] = struct{}{}
	}
	return v
}

// Number is the 1-based index of the round within the game.
func (v *VoteRound) Number() int {
	return v.number
}

// PassageID is the passage being voted on.
func (v *VoteRound) PassageID() string {
	return v.passage.ID
}

// Closed reports whether Resolve has already run.
func (v *VoteRound) Closed() bool {
	return v.result != nil
}

// HasVoted reports whether playerID has a ballot in this round.
func (v *VoteRound) HasVoted(playerID string) bool {
	_, ok := v.ballots[playerID]
	return ok
}

// IsRequired reports whether playerID is still expected to vote.
func (v *VoteRound) IsRequired(playerID string) bool {
	_, ok := v.required[playerID]
	return ok
}

// Cast records a ballot. choice may name either a target id or a choice
// label of the passage.
func (v *VoteRound) Cast(playerID, choice string) error {
	if v.Closed() {
		return ErrNotInRound
	}
	if _, ok := v.required[playerID]; !ok {
		return ErrNotInRound
	}
	if _, ok := v.ballots[playerID]; ok {
		return ErrAlreadyVoted
	}
	target, ok := v.target(choice)
	if !ok {
		return ErrInvalidTarget
	}
	v.ballots[playerID] = target
	return nil
}

func (v *VoteRound) target(choice string) (string, bool) {
	for _, c := range v.passage.Choices {
		if c.TargetID == choice {
			return c.TargetID, true
		}
	}
	for _, c := range v.passage.Choices {
		if c.Label == choice {
			return c.TargetID, true
		}
	}
	return "", false
}

func (v *VoteRound) label(target string) string {
	for _, c := range v.passage.Choices {
		if c.TargetID == target {
			return c.Label
		}
	}
	return target
}

// RemoveVoter drops playerID from the required set and discards its ballot.
// It reports whether the voter was part of the round. Closed rounds are left
// untouched.
func (v *VoteRound) RemoveVoter(playerID string) bool {
	if v.Closed() {
		return false
	}
	if _, ok := v.required[playerID]; !ok {
		return false
	}
	delete(v.required, playerID)
	delete(v.ballots, playerID)
	return true
}

// IsComplete reports whether every remaining required voter has voted.
func (v *VoteRound) IsComplete() bool {
	if v.Closed() {
		return true
	}
	for id := range v.required {
		if _, ok := v.ballots[id]; !ok {
			return false
		}
	}
	return true
}

// Tally returns the live count of the round.
func (v *VoteRound) Tally() models.Tally {
	return models.Tally{
		Votes:          len(v.ballots),
		Total:          len(v.required),
		VotersByChoice: v.votersByChoice(),
	}
}

func (v *VoteRound) votersByChoice() map[string][]string {
	out := make(map[string][]string)
	for _, id := range v.order {
		target, ok := v.ballots[id]
		if !ok {
			continue
		}
		out[target] = append(out[target], v.names[id])
	}
	return out
}

// Resolve tallies the ballots and picks the target with the most votes. A tie
// is broken with a single uniform draw among the tied targets; the outcome is
// cached so later calls return the same result.
func (v *VoteRound) Resolve() (models.VoteResult, error) {
	if v.result != nil {
		return *v.result, nil
	}
	if !v.IsComplete() {
		return models.VoteResult{}, ErrRoundIncomplete
	}

	counts := make(map[string]int, len(v.passage.Choices))
	for _, target := range v.ballots {
		counts[target]++
	}

	var leaders []string
	if len(counts) == 0 {
		// nobody left to vote: every choice is equally likely
		seen := make(map[string]struct{})
		for _, c := range v.passage.Choices {
			if _, ok := seen[c.TargetID]; ok {
				continue
			}
			seen[c.TargetID] = struct{}{}
			leaders = append(leaders, c.TargetID)
		}
	} else {
		best := 0
		for target, n := range counts {
			switch {
			case n > best:
				best = n
				leaders = []string{target}
			case n == best:
				leaders = append(leaders, target)
			}
		}
	}
	if len(leaders) == 0 {
		return models.VoteResult{}, ErrInvalidTarget
	}
	sort.Strings(leaders)

	winner := leaders[0]
	if len(leaders) > 1 {
		winner = leaders[v.rng.Intn(len(leaders))]
	}

	v.result = &models.VoteResult{
		Choice:         v.label(winner),
		VoteCounts:     counts,
		VotersByChoice: v.votersByChoice(),
		NextPassage:    winner,
		Tie:            len(leaders) > 1,
	}
	return *v.result, nil
}
