package story

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/OktayBayram/nyx-game/internal/models"
)

// ParseTwine reads a published Twine 2 story (an HTML document holding
// <tw-storydata> and <tw-passagedata> elements).
func ParseTwine(data []byte, opts Options) (*Graph, error) {
	z := html.NewTokenizer(bytes.NewReader(data))

	var (
		startPID string
		pids     = make(map[string]string)
		passages []models.Passage
		errs     []error
		cur      *models.Passage
		curPID   string
		body     strings.Builder
	)

loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				break loop
			}
			return nil, fmt.Errorf("parse twine: %w", z.Err())
		case html.StartTagToken:
			tok := z.Token()
			switch tok.Data {
			case "tw-storydata":
				startPID = attr(tok, "startnode")
			case "tw-passagedata":
				cur = &models.Passage{
					ID:   attr(tok, "name"),
					Tags: strings.Fields(attr(tok, "tags")),
				}
				curPID = attr(tok, "pid")
				body.Reset()
			}
		case html.TextToken:
			if cur != nil {
				body.Write(z.Text())
			}
		case html.EndTagToken:
			tok := z.Token()
			if tok.Data != "tw-passagedata" || cur == nil {
				continue
			}
			text, choices, err := parseLinks(body.String())
			if err != nil {
				errs = append(errs, fmt.Errorf("passage %q: %w", cur.ID, err))
			}
			cur.Text = text
			cur.Choices = choices
			passages = append(passages, *cur)
			pids[cur.ID] = curPID
			cur = nil
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
	}
	if len(passages) == 0 {
		return nil, fmt.Errorf("%w: no passages", ErrInvalidGraph)
	}

	start := opts.Start
	if start == "" {
		for name, pid := range pids {
			if pid != "" && pid == startPID {
				start = name
				break
			}
		}
	}
	if start == "" {
		start = lowestPID(pids)
	}
	return New(start, passages, opts.Endings)
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
