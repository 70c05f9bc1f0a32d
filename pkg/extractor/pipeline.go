package extractor

import (
	"fmt"
	"io"

	"github.com/jmylchreest/menuscrape/internal/logger"
	"github.com/jmylchreest/menuscrape/pkg/menu"
)

// State is a step of the extraction cascade.
type State int

// The cascade runs the states in this order and stops at the first strategy
// that returns records.
const (
	StateStructural State = iota
	StateTextPattern
	StateEmbeddedData
	StatePlaceholder
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStructural:
		return NameStructural
	case StateTextPattern:
		return NameTextPattern
	case StateEmbeddedData:
		return NameEmbedded
	case StatePlaceholder:
		return NamePlaceholder
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Attempt records one strategy run.
type Attempt struct {
	State    State  `json:"state" yaml:"state"`
	Strategy string `json:"strategy" yaml:"strategy"`
	Records  int    `json:"records" yaml:"records"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	// Records is the output of the winning strategy. Empty when every
	// strategy came up empty.
	Records []menu.Record

	// Strategy names the strategy that produced Records, or "" if none did.
	Strategy string

	// Trace lists the strategies run, in order.
	Trace []Attempt
}

// Pipeline is the ordered extraction cascade. It holds no per-run state and
// is safe for concurrent use.
type Pipeline struct {
	stages [StateDone]Strategy
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSelectors overrides the structural selectors.
func WithSelectors(sel Selectors) Option {
	return func(p *Pipeline) {
		p.stages[StateStructural] = NewStructural(sel)
	}
}

// WithStrategy replaces the strategy run in state.
func WithStrategy(state State, s Strategy) Option {
	return func(p *Pipeline) {
		if state >= StateStructural && state < StateDone && s != nil {
			p.stages[state] = s
		}
	}
}

// NewPipeline creates the cascade with the built-in strategies.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		stages: [StateDone]Strategy{
			StateStructural:   NewStructural(DefaultSelectors()),
			StateTextPattern:  NewTextPattern(),
			StateEmbeddedData: NewEmbeddedData(),
			StatePlaceholder:  NewPlaceholder(),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultPipeline = NewPipeline()

// Extract runs the default pipeline over UTF-8 markup.
func Extract(markup, storeID string) (Result, error) {
	return defaultPipeline.Extract(markup, storeID)
}

// Extract parses markup and runs the cascade over it.
func (p *Pipeline) Extract(markup, storeID string) (Result, error) {
	doc, err := ParseDocument(markup)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return p.ExtractDocument(doc, storeID)
}

// ExtractReader decodes and parses a page body, then runs the cascade.
// contentType may be empty.
func (p *Pipeline) ExtractReader(r io.Reader, contentType, storeID string) (Result, error) {
	doc, err := NewDocument(r, contentType)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return p.ExtractDocument(doc, storeID)
}

// ExtractDocument runs the cascade over a parsed document. A strategy error
// aborts the run with ErrExtractionFailed and no records.
func (p *Pipeline) ExtractDocument(doc *Document, storeID string) (Result, error) {
	var res Result

	for state := StateStructural; state != StateDone; {
		strategy := p.stages[state]
		records, err := runStrategy(strategy, doc, storeID)
		if err != nil {
			return Result{Trace: res.Trace}, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, strategy.Name(), err)
		}

		res.Trace = append(res.Trace, Attempt{
			State:    state,
			Strategy: strategy.Name(),
			Records:  len(records),
		})
		logger.Debug("extraction strategy finished",
			"store_id", storeID,
			"strategy", strategy.Name(),
			"records", len(records))

		if len(records) > 0 {
			res.Records = records
			res.Strategy = strategy.Name()
			state = StateDone
			continue
		}
		state++
	}

	return res, nil
}

// runStrategy converts a panic escaping a strategy into an error.
func runStrategy(s Strategy, doc *Document, storeID string) (records []menu.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Extract(doc, storeID)
}
