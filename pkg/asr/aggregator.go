package asr

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/metastaff/voicekit/pkg/iat"
)

// DefaultSegmentGap is how long the transcript may go without a new
// fragment before the next fragment starts a fresh segment instead of
// extending the current one.
const DefaultSegmentGap = 2 * time.Second

// punctOnly matches transcripts with no speech content, only
// whitespace and (western or CJK) punctuation.
var punctOnly = regexp.MustCompile(`^[\s.,!?;:…，。？！、；：—-]*$`)

// Aggregator folds the gateway's incremental result fragments into a
// running transcript. Fragments without a pgs marker extend the
// committed text; fragments with one rewrite the speculative tail, and
// "apd" first promotes the previous tail to committed. Punctuation-only
// and empty finals fall back to the last text that carried content.
type Aggregator struct {
	mu sync.Mutex

	gap time.Duration
	now func() time.Time

	committed    string
	pending      string
	lastNonPunct string
	lastResult   time.Time

	onInterim func(text string, confidence float64)
	onFinal   func(text string, confidence float64)
}

// AggregatorConfig configures transcript aggregation.
type AggregatorConfig struct {
	// SegmentGap resets the transcript when fragments stop arriving
	// for this long (default 2s). Zero or negative uses the default.
	SegmentGap time.Duration

	// OnInterim receives the running transcript after each fragment
	// that carries content, with the fragment's confidence score.
	OnInterim func(text string, confidence float64)

	// OnFinal receives the settled transcript once per utterance.
	OnFinal func(text string, confidence float64)

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// NewAggregator returns an aggregator with an empty transcript.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.SegmentGap <= 0 {
		cfg.SegmentGap = DefaultSegmentGap
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Aggregator{
		gap:       cfg.SegmentGap,
		now:       cfg.Now,
		onInterim: cfg.OnInterim,
		onFinal:   cfg.OnFinal,
	}
}

// Push folds one gateway result into the transcript and fires the
// matching callback. final marks the message that closes the utterance
// (its fragment may be empty); after a final the buffers clear so the
// next fragment starts a fresh utterance. Punctuation-only or empty
// finals with no earlier content are suppressed entirely.
func (a *Aggregator) Push(res *iat.Result, final bool) {
	if res == nil {
		return
	}

	a.mu.Lock()

	now := a.now()
	if !a.lastResult.IsZero() && now.Sub(a.lastResult) > a.gap {
		a.resetLocked()
	}
	a.lastResult = now

	fragment := res.Text()
	if res.PGS != "" {
		if res.PGS == iat.PGSReplace {
			a.committed = a.pending
		}
		a.pending = a.committed + fragment
	} else {
		a.committed += fragment
	}

	text := a.pending
	if text == "" {
		text = a.committed
	}
	text = strings.TrimSpace(text)

	if final && (text == "" || punctOnly.MatchString(text)) {
		text = a.lastNonPunct
	}
	hasContent := text != "" && !punctOnly.MatchString(text)

	if !final {
		if hasContent {
			a.lastNonPunct = text
		}
		cb := a.onInterim
		a.mu.Unlock()
		if hasContent && cb != nil {
			cb(text, res.Confidence)
		}
		return
	}

	a.resetLocked()
	a.lastResult = time.Time{}
	cb := a.onFinal
	a.mu.Unlock()
	if hasContent && cb != nil {
		cb(text, res.Confidence)
	}
}

// Text returns the current running transcript.
func (a *Aggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != "" {
		return strings.TrimSpace(a.pending)
	}
	return strings.TrimSpace(a.committed)
}

// Reset clears the transcript ahead of the next utterance.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
	a.lastResult = time.Time{}
}

func (a *Aggregator) resetLocked() {
	a.committed = ""
	a.pending = ""
	a.lastNonPunct = ""
}
