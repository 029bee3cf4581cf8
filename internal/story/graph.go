// Package story holds the immutable passage graph that rooms traverse.
//
// A graph is validated once at load time: every choice must point at a known
// passage or at a declared ending, so traversal never meets a dangling link.
package story

import (
	"errors"
	"fmt"
	"sort"

	"github.com/OktayBayram/nyx-game/internal/models"
)

// EndingTag marks a passage as an intentional ending in authored sources.
const EndingTag = "ending"

var (
	// ErrPassageNotFound is returned for ids that are not part of the graph.
	ErrPassageNotFound = errors.New("passage not found")
	// ErrInvalidGraph wraps every load-time validation failure.
	ErrInvalidGraph = errors.New("invalid story graph")
)

// Graph maps passage ids to passages. It is safe for concurrent use because
// nothing mutates it after New returns.
type Graph struct {
	start    string
	passages map[string]models.Passage
	endings  map[string]struct{}
}

// New builds and validates a graph. endings lists target ids that may be
// referenced without being authored; they are treated as terminal.
func New(start string, passages []models.Passage, endings []string) (*Graph, error) {
	g := &Graph{
		start:    start,
		passages: make(map[string]models.Passage, len(passages)),
		endings:  make(map[string]struct{}, len(endings)),
	}
	for _, e := range endings {
		g.endings[e] = struct{}{}
	}

	var errs []error
	for _, p := range passages {
		if p.ID == "" {
			errs = append(errs, errors.New("passage with empty id"))
			continue
		}
		if _, dup := g.passages[p.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate passage %q", p.ID))
			continue
		}
		if p.Choices == nil {
			p.Choices = []models.Choice{}
		}
		g.passages[p.ID] = p
	}

	if start == "" {
		errs = append(errs, errors.New("missing start passage"))
	} else if _, ok := g.passages[start]; !ok {
		errs = append(errs, fmt.Errorf("start passage %q not found", start))
	}

	for _, id := range g.IDs() {
		for _, c := range g.passages[id].Choices {
			if _, ok := g.passages[c.TargetID]; ok {
				continue
			}
			if _, ok := g.endings[c.TargetID]; ok {
				continue
			}
			errs = append(errs, fmt.Errorf("passage %q links to unknown target %q", id, c.TargetID))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
	}
	return g, nil
}

// Start returns the id of the passage every game begins at.
func (g *Graph) Start() string {
	return g.start
}

// Len returns the number of authored passages.
func (g *Graph) Len() int {
	return len(g.passages)
}

// IDs returns the authored passage ids in sorted order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.passages))
	for id := range g.passages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetPassage looks up an authored passage.
func (g *Graph) GetPassage(id string) (models.Passage, error) {
	p, ok := g.passages[id]
	if !ok {
		return models.Passage{}, fmt.Errorf("%w: %q", ErrPassageNotFound, id)
	}
	return p, nil
}

// Resolve returns the passage a traversal lands on. Declared endings that
// were never authored resolve to an empty terminal passage.
func (g *Graph) Resolve(id string) (models.Passage, error) {
	if p, ok := g.passages[id]; ok {
		return p, nil
	}
	if _, ok := g.endings[id]; ok {
		return models.Passage{ID: id, Tags: []string{EndingTag}, Choices: []models.Choice{}}, nil
	}
	return models.Passage{}, fmt.Errorf("%w: %q", ErrPassageNotFound, id)
}

// IsEnding reports whether reaching id ends the game.
func (g *Graph) IsEnding(id string) bool {
	p, err := g.Resolve(id)
	if err != nil {
		return false
	}
	return p.IsTerminal()
}
