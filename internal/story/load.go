package story

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/OktayBayram/nyx-game/internal/models"
)

// Options override what the authored source declares.
type Options struct {
	// Start replaces the source's start passage when set.
	Start string
	// Endings adds target ids that may be referenced without being authored.
	Endings []string
}

// Load reads a story file. Twine HTML (.html, .htm) and JSON are accepted.
func Load(path string, opts Options) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read story %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return ParseTwine(data, opts)
	default:
		return ParseJSON(data, opts)
	}
}

type nativeStory struct {
	Start    string           `json:"start"`
	Endings  []string         `json:"endings"`
	Passages []models.Passage `json:"passages"`
}

// twineJSONPassage is the shape written by the Twine-to-JSON export script:
// an object keyed by passage name.
type twineJSONPassage struct {
	PID     string   `json:"pid"`
	Name    string   `json:"name"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Links   []struct {
		Text   string `json:"text"`
		Target string `json:"target"`
	} `json:"links"`
}

// ParseJSON accepts either the native {start, endings, passages} document or
// an exported Twine object keyed by passage name.
func ParseJSON(data []byte, opts Options) (*Graph, error) {
	var head map[string]json.RawMessage
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode story: %w", err)
	}

	if raw, ok := head["passages"]; ok && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		var doc nativeStory
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode story: %w", err)
		}
		start := doc.Start
		if opts.Start != "" {
			start = opts.Start
		}
		return New(start, doc.Passages, append(doc.Endings, opts.Endings...))
	}

	var exported map[string]twineJSONPassage
	if err := json.Unmarshal(data, &exported); err != nil {
		return nil, fmt.Errorf("decode exported twine story: %w", err)
	}
	if len(exported) == 0 {
		return nil, fmt.Errorf("%w: no passages", ErrInvalidGraph)
	}

	passages := make([]models.Passage, 0, len(exported))
	pids := make(map[string]string, len(exported))
	for key, p := range exported {
		name := p.Name
		if name == "" {
			name = key
		}
		passage := models.Passage{ID: name, Text: strings.TrimSpace(p.Content), Tags: p.Tags, Choices: []models.Choice{}}
		for _, l := range p.Links {
			target := l.Target
			if target == "" {
				target = l.Text
			}
			passage.Choices = append(passage.Choices, models.Choice{Label: l.Text, TargetID: target})
		}
		passages = append(passages, passage)
		pids[name] = p.PID
	}
	sort.Slice(passages, func(i, j int) bool { return passages[i].ID < passages[j].ID })

	start := opts.Start
	if start == "" {
		start = lowestPID(pids)
	}
	return New(start, passages, opts.Endings)
}

// lowestPID picks the passage with the smallest numeric pid, which is where
// Twine places the story's first passage.
func lowestPID(pids map[string]string) string {
	best, bestPID := "", 0
	for name, raw := range pids {
		pid, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		if best == "" || pid < bestPID || (pid == bestPID && name < best) {
			best, bestPID = name, pid
		}
	}
	return best
}

var linkPattern = regexp.MustCompile(`\[\[(.*?)\]\]`)

// parseLinks extracts [[...]] links and returns the text with the link markup
// removed. Supported forms: [[target]], [[label->target]], [[target<-label]]
// and [[label|target]].
func parseLinks(content string) (string, []models.Choice, error) {
	choices := []models.Choice{}
	var errs []error
	for _, m := range linkPattern.FindAllStringSubmatch(content, -1) {
		inner := m[1]
		var c models.Choice
		switch {
		case strings.Contains(inner, "->"):
			i := strings.LastIndex(inner, "->")
			c = models.Choice{Label: inner[:i], TargetID: inner[i+2:]}
		case strings.Contains(inner, "<-"):
			i := strings.Index(inner, "<-")
			c = models.Choice{Label: inner[i+2:], TargetID: inner[:i]}
		case strings.Contains(inner, "|"):
			i := strings.LastIndex(inner, "|")
			c = models.Choice{Label: inner[:i], TargetID: inner[i+1:]}
		default:
			c = models.Choice{Label: inner, TargetID: inner}
		}
		c.Label = strings.TrimSpace(c.Label)
		c.TargetID = strings.TrimSpace(c.TargetID)
		if c.TargetID == "" {
			errs = append(errs, fmt.Errorf("empty link target in %q", m[0]))
			continue
		}
		if c.Label == "" {
			c.Label = c.TargetID
		}
		choices = append(choices, c)
	}
	text := strings.TrimSpace(linkPattern.ReplaceAllString(content, ""))
	return text, choices, errors.Join(errs...)
}
