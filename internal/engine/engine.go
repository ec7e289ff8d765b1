package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vboughner/brain-lambda/internal/config"
	"github.com/vboughner/brain-lambda/internal/memory"
	"github.com/vboughner/brain-lambda/internal/report"
	"github.com/vboughner/brain-lambda/internal/search"
	"github.com/vboughner/brain-lambda/internal/storage"
)

// ServerVersion is reported with every response
const ServerVersion = "1.4.0"

var (
	ErrMissingUserID  = errors.New("missing user id")
	ErrEmptyQuestion  = errors.New("empty question")
	ErrEmptyStatement = errors.New("empty statement")
)

// Engine orchestrates storage and recall for one request at a time
type Engine struct {
	Config  *config.Config
	Logger  *logrus.Entry
	Storage storage.Driver
	Ranker  *search.Ranker
	Now     func() time.Time

	mu    sync.RWMutex
	stats Stats
}

// Stats counts what the engine has done since it started
type Stats struct {
	StartTime time.Time
	Memorized int64
	Recalled  int64
	Deleted   int64
	Reports   int64
	LastError string
}

// Caller identifies who is talking to the engine, after owner resolution
type Caller struct {
	OwnerID      string
	DeviceID     string
	LanguageTag  string
	Timezone     string
	StoreCountry string
}

func NewEngine(cfg *config.Config, logger *logrus.Entry, store storage.Driver) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine requires a storage driver")
	}
	ranker := search.NewRanker(
		search.WithLogger(logger.WithField("component", "search")),
		search.WithConcurrency(cfg.Search.Concurrency),
	)
	return &Engine{
		Config:  cfg,
		Logger:  logger,
		Storage: store,
		Ranker:  ranker,
		Now:     time.Now,
		stats:   Stats{StartTime: time.Now()},
	}, nil
}

// Stats returns a snapshot of the counters
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// MemoryCount returns how many memories are stored across all owners
func (e *Engine) MemoryCount(ctx context.Context) (int, error) {
	everything, err := e.Storage.LoadEverything(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return len(everything), nil
}

func (e *Engine) count(f func(*Stats)) {
	e.mu.Lock()
	f(&e.stats)
	e.mu.Unlock()
}

func (e *Engine) fail(err error, msg string, fields logrus.Fields) error {
	e.Logger.WithError(err).WithFields(fields).Error(msg)
	e.count(func(s *Stats) { s.LastError = err.Error() })
	return fmt.Errorf("%s: %w", strings.ToLower(msg), err)
}

// ResolveOwner maps assistant user ids to the owner id memories are stored under.
// When both ids are given a migration is in progress: the new id is linked to
// the old one unless it already points elsewhere.
func (e *Engine) ResolveOwner(ctx context.Context, userID, linkedUserID, deviceID string) (string, error) {
	switch {
	case userID != "" && linkedUserID != "":
		target, ok, err := e.Storage.LinkedOwner(ctx, linkedUserID)
		if err != nil {
			return "", e.fail(err, "Failed to look up identity", logrus.Fields{"user_id": linkedUserID})
		}
		if ok && target != linkedUserID {
			return target, nil
		}
		if err := e.Storage.Link(ctx, linkedUserID, userID, deviceID); err != nil {
			return "", e.fail(err, "Failed to link identity", logrus.Fields{"user_id": linkedUserID, "owner_id": userID})
		}
		e.Logger.WithFields(logrus.Fields{"user_id": linkedUserID, "owner_id": userID}).Info("Linked new user id to owner")
		return userID, nil
	case userID != "" || linkedUserID != "":
		id := userID
		if id == "" {
			id = linkedUserID
		}
		target, ok, err := e.Storage.LinkedOwner(ctx, id)
		if err != nil {
			return "", e.fail(err, "Failed to look up identity", logrus.Fields{"user_id": id})
		}
		if ok {
			return target, nil
		}
		return id, nil
	default:
		return "", ErrMissingUserID
	}
}

// Memorize stores a statement after trimming conversational filler
func (e *Engine) Memorize(ctx context.Context, c Caller, statement string) (*Response, error) {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return nil, ErrEmptyStatement
	}

	text := e.Ranker.Tokenizer().TrimStatement(c.LanguageTag, statement)
	if text == "" {
		return e.respond(false, fmt.Sprintf("Hmmm, I heard you say, %s, but that didn't sound like a memory I could store.", statement)), nil
	}

	rec, err := e.Storage.Store(ctx, memory.Record{
		OwnerID:      c.OwnerID,
		DeviceID:     c.DeviceID,
		Text:         text,
		LanguageTag:  c.LanguageTag,
		Timezone:     c.Timezone,
		StoreCountry: c.StoreCountry,
	})
	if err != nil {
		return nil, e.fail(err, "Failed to store memory", logrus.Fields{"user_id": c.OwnerID})
	}
	e.count(func(s *Stats) { s.Memorized++ })
	e.Logger.WithFields(logrus.Fields{"user_id": c.OwnerID, "when_stored": rec.StoredAt}).Info("Memorized statement")

	resp := e.respond(true, fmt.Sprintf("I will remember that you said: %s.", text))
	resp.Answers = []Answer{e.answer(memory.Match{Record: rec})}
	return resp, nil
}

// Recall answers a question with the owner's best matching memories, best first
func (e *Engine) Recall(ctx context.Context, c Caller, question string) (*Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	records, err := e.Storage.Load(ctx, c.OwnerID)
	if err != nil {
		return nil, e.fail(err, "Failed to load memories", logrus.Fields{"user_id": c.OwnerID})
	}

	query := e.Ranker.Tokenizer().TrimQuestion(c.LanguageTag, question)
	matches := e.Ranker.Rank(c.LanguageTag, records, query)
	e.count(func(s *Stats) { s.Recalled++ })

	e.Logger.WithFields(logrus.Fields{
		"user_id":  c.OwnerID,
		"memories": len(records),
		"matches":  len(matches),
	}).Info("Recalled memories")

	if len(matches) == 0 {
		return e.respond(false, "I don't have a memory that makes sense as an answer for that."), nil
	}

	resp := e.respond(true, "")
	resp.Answers = make([]Answer, len(matches))
	for i, m := range matches {
		resp.Answers[i] = e.answer(m)
	}
	resp.Speech = fmt.Sprintf("You told me %s: %s.", resp.Answers[0].HowLongAgo, resp.Answers[0].Text)
	return resp, nil
}

// List returns every memory of the owner, newest first
func (e *Engine) List(ctx context.Context, c Caller) (*Response, error) {
	records, err := e.Storage.Load(ctx, c.OwnerID)
	if err != nil {
		return nil, e.fail(err, "Failed to load memories", logrus.Fields{"user_id": c.OwnerID})
	}

	resp := e.respond(true, "There are no memories.")
	resp.Answers = make([]Answer, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		resp.Answers = append(resp.Answers, e.answer(memory.Match{Record: records[i]}))
	}
	switch n := len(resp.Answers); {
	case n == 1:
		resp.Speech = "You have 1 memory."
	case n > 1:
		resp.Speech = fmt.Sprintf("You have %d memories.", n)
	}
	return resp, nil
}

func (e *Engine) DeleteOne(ctx context.Context, c Caller, storedAt int64) (*Response, error) {
	err := e.Storage.EraseOne(ctx, c.OwnerID, storedAt)
	if errors.Is(err, storage.ErrNotFound) {
		resp := e.respond(false, "There was a problem and I could not delete that memory.")
		resp.WhenStored = storedAt
		return resp, nil
	}
	if err != nil {
		return nil, e.fail(err, "Failed to delete memory", logrus.Fields{"user_id": c.OwnerID, "when_stored": storedAt})
	}
	e.count(func(s *Stats) { s.Deleted++ })

	resp := e.respond(true, "I deleted that memory.")
	resp.WhenStored = storedAt
	return resp, nil
}

func (e *Engine) DeleteAll(ctx context.Context, c Caller) (*Response, error) {
	n, err := e.Storage.EraseAll(ctx, c.OwnerID)
	if err != nil {
		return nil, e.fail(err, "Failed to delete all memories", logrus.Fields{"user_id": c.OwnerID})
	}
	e.count(func(s *Stats) { s.Deleted += int64(n) })
	e.Logger.WithFields(logrus.Fields{"user_id": c.OwnerID, "deleted": n}).Info("Deleted all memories")

	resp := e.respond(true, "I deleted all memories.")
	resp.Deleted = n
	return resp, nil
}

// UpdateText replaces the text of one memory, keeping its StoredAt
func (e *Engine) UpdateText(ctx context.Context, c Caller, storedAt int64, text string) (*Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyStatement
	}

	rec, err := e.Storage.UpdateText(ctx, c.OwnerID, storedAt, text)
	if errors.Is(err, storage.ErrNotFound) {
		resp := e.respond(false, "I could not find that memory to change it.")
		resp.WhenStored = storedAt
		return resp, nil
	}
	if err != nil {
		return nil, e.fail(err, "Failed to update memory", logrus.Fields{"user_id": c.OwnerID, "when_stored": storedAt})
	}

	resp := e.respond(true, fmt.Sprintf("I changed that memory to say: %s.", rec.Text))
	resp.WhenStored = storedAt
	resp.Answers = []Answer{e.answer(memory.Match{Record: rec})}
	return resp, nil
}

// Report compiles usage statistics over every stored memory and keeps a copy
func (e *Engine) Report(ctx context.Context, c Caller) (*Response, error) {
	everything, err := e.Storage.LoadEverything(ctx)
	if err != nil {
		return nil, e.fail(err, "Failed to load all memories", logrus.Fields{"user_id": c.OwnerID})
	}
	rep, err := report.Compile(everything, e.Now(), c.OwnerID, c.DeviceID)
	if err != nil {
		return nil, err
	}
	e.count(func(s *Stats) { s.Reports++ })

	resp := e.respond(true, "Here is the report you requested.")
	resp.Report = &rep
	if _, err := e.Storage.StoreReport(ctx, storage.ReportEntry{
		OwnerID:       c.OwnerID,
		DeviceID:      c.DeviceID,
		ServerVersion: ServerVersion,
		Report:        rep,
	}); err != nil {
		e.Logger.WithError(err).Warn("Failed to store a copy of the report")
		resp.Speech = "Here is the report, but I could not store a copy."
	}
	return resp, nil
}

// HelpText explains how to use the service
const HelpText = "Tell me to remember something, and I'll remember it. " +
	"Ask me a question that includes a few words from that memory, and I'll find it for you."

func (e *Engine) Help(languageTag string) *Response {
	return e.respond(true, HelpText)
}
