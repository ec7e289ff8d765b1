package search

import (
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vboughner/brain-lambda/internal/memory"
)

// Ranker orders one owner's memories by how well they answer a question
type Ranker struct {
	tokenizer   *Tokenizer
	matcher     Matcher
	logger      *logrus.Entry
	concurrency int
}

// Option configures a Ranker
type Option func(*Ranker)

// WithCatalog replaces the built-in locale table
func WithCatalog(c *Catalog) Option {
	return func(r *Ranker) {
		r.tokenizer.Catalog = c
	}
}

// WithMatcher replaces the bitap matcher
func WithMatcher(m Matcher) Option {
	return func(r *Ranker) {
		r.matcher = m
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(r *Ranker) {
		r.logger = logger
		r.tokenizer.Logger = logger
	}
}

// WithConcurrency scores up to n query words in parallel. Values below 2 keep scoring sequential.
func WithConcurrency(n int) Option {
	return func(r *Ranker) {
		r.concurrency = n
	}
}

func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		tokenizer: NewTokenizer(nil, nil),
		matcher:   Bitap{},
	}
	r.logger = r.tokenizer.Logger
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tokenizer exposes the tokenizer used for queries
func (r *Ranker) Tokenizer() *Tokenizer {
	return r.tokenizer
}

// Rank scores records against the significant words of query and returns the
// matching ones, best first. Equal scores put the most recent memory first.
// A query with no significant words, or only an "everything" word, returns
// every record with score 1. The result is never nil and records is not modified.
func (r *Ranker) Rank(languageTag string, records []memory.Record, query string) []memory.Match {
	if len(records) == 0 {
		return []memory.Match{}
	}

	loc, tokens := r.tokenizer.analyze(languageTag, query)
	scores := make([]int, len(records))
	everything := loc.IsEverything(tokens)
	if everything {
		for i := range scores {
			scores[i] = 1
		}
	} else {
		r.score(loc, unique(tokens), records, scores)
	}

	matches := make([]memory.Match, 0, len(records))
	for i, rec := range records {
		if scores[i] > 0 {
			matches = append(matches, memory.Match{Record: rec, Score: scores[i]})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].StoredAt > matches[j].StoredAt
	})

	r.logger.WithFields(logrus.Fields{
		"tokens":     tokens,
		"everything": everything,
		"candidates": len(records),
		"matches":    len(matches),
	}).Debug("Ranked memories")

	return matches
}

func (r *Ranker) score(loc Locale, tokens []string, records []memory.Record, scores []int) {
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = Fold(rec.Text)
	}
	opts := loc.MatchOptions()

	hits := make([][]bool, len(tokens))
	if r.concurrency > 1 && len(tokens) > 1 {
		var g errgroup.Group
		g.SetLimit(r.concurrency)
		for k, token := range tokens {
			k, token := k, token
			g.Go(func() error {
				hits[k] = r.search(token, texts, opts)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for k, token := range tokens {
			hits[k] = r.search(token, texts, opts)
		}
	}

	for _, tokenHits := range hits {
		for i, hit := range tokenHits {
			if hit {
				scores[i]++
			}
		}
	}
}

func (r *Ranker) search(token string, texts []string, opts MatchOptions) []bool {
	hits := make([]bool, len(texts))
	for i, text := range texts {
		_, hits[i] = r.matcher.Match(token, text, opts)
	}
	return hits
}

func unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
