package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"

	"SentimentPipeline/internal/domain"
	"SentimentPipeline/internal/ports"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// journal records cross-fake call order.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(call string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, call)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

type fakeArticles struct {
	mu       sync.Mutex
	order    []string
	byID     map[string]domain.Article
	findErrs int
	markErr  error
	journal  *journal
}

func newFakeArticles(articles ...domain.Article) *fakeArticles {
	f := &fakeArticles{byID: map[string]domain.Article{}}
	for _, a := range articles {
		f.order = append(f.order, a.ID)
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeArticles) Exists(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeArticles) Insert(_ context.Context, a domain.Article) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, a.ID)
	f.byID[a.ID] = a
	return a.ID, nil
}

func (f *fakeArticles) FindUnanalyzed(context.Context) ([]domain.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErrs > 0 {
		f.findErrs--
		return nil, errors.New("server selection timeout")
	}
	var out []domain.Article
	for _, id := range f.order {
		if a := f.byID[id]; !a.IsAnalyzed {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeArticles) MarkAnalyzed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	a := f.byID[id]
	a.IsAnalyzed = true
	f.byID[id] = a
	f.journal.add("mark:" + id)
	return nil
}

func (f *fakeArticles) analyzed(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].IsAnalyzed
}

type fakeFacts struct {
	mu      sync.Mutex
	records []domain.SentimentRecord
	failOn  map[string]bool
	journal *journal
}

func (f *fakeFacts) Insert(_ context.Context, r domain.SentimentRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.journal.add("fact:" + r.ArticleID + ":" + r.TargetEntity)
	if f.failOn[r.TargetEntity] {
		return errors.New("deadlock detected")
	}
	f.records = append(f.records, r)
	return nil
}

func (f *fakeFacts) all() []domain.SentimentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SentimentRecord(nil), f.records...)
}

// keys returns sorted article/ticker pairs for set comparison.
func (f *fakeFacts) keys() []string {
	var out []string
	for _, r := range f.all() {
		out = append(out, r.ArticleID+"/"+r.TargetEntity+"/"+r.SentimentLabel)
	}
	sort.Strings(out)
	return out
}

type fakeExtractor struct {
	mu      sync.Mutex
	byTitle map[string][]string
	// failures counts remaining failures per title.
	failures map[string]int
}

func (f *fakeExtractor) Extract(_ context.Context, title, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[title] > 0 {
		f.failures[title]--
		return nil, errors.New("inference unavailable")
	}
	return f.byTitle[title], nil
}

type fakeScorer struct {
	byText map[string]domain.Sentiment
}

func (f *fakeScorer) Score(_ context.Context, text string) (domain.Sentiment, error) {
	if s, ok := f.byText[text]; ok {
		return s, nil
	}
	return domain.NeutralSentiment(), nil
}

type fakeTokens struct {
	mu      sync.Mutex
	current []byte
	saved   [][]byte
	clears  int
	loadErr int
}

func (f *fakeTokens) Load(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr > 0 {
		f.loadErr--
		return nil, errors.New("checkpoint collection unavailable")
	}
	return f.current, nil
}

func (f *fakeTokens) Save(_ context.Context, token []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = token
	f.saved = append(f.saved, token)
	return nil
}

func (f *fakeTokens) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	f.clears++
	return nil
}

func (f *fakeTokens) snapshot() ([]byte, []string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var saved []string
	for _, t := range f.saved {
		saved = append(saved, string(t))
	}
	return f.current, saved, f.clears
}

// session scripts one Watch call.
type session struct {
	watchErr error
	events   []domain.ChangeEvent
	// endErr ends the stream after the events; nil keeps it open until ctx ends.
	endErr error
}

type fakeFeed struct {
	mu       sync.Mutex
	sessions []session
	resumes  []string
}

func (f *fakeFeed) Watch(_ context.Context, resumeAfter []byte) (ports.ChangeStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes = append(f.resumes, string(resumeAfter))

	s := session{}
	if len(f.sessions) > 0 {
		s, f.sessions = f.sessions[0], f.sessions[1:]
	}
	if s.watchErr != nil {
		return nil, s.watchErr
	}
	return &fakeStream{events: s.events, endErr: s.endErr}, nil
}

func (f *fakeFeed) watched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resumes...)
}

type fakeStream struct {
	events  []domain.ChangeEvent
	current domain.ChangeEvent
	endErr  error
	err     error
}

func (s *fakeStream) Next(ctx context.Context) bool {
	if len(s.events) > 0 {
		s.current, s.events = s.events[0], s.events[1:]
		return true
	}
	if s.endErr != nil {
		s.err = s.endErr
		return false
	}
	<-ctx.Done()
	return false
}

func (s *fakeStream) Event() domain.ChangeEvent { return s.current }

func (s *fakeStream) Err() error { return s.err }

func (s *fakeStream) Close(context.Context) error { return nil }

func event(token string, a domain.Article) domain.ChangeEvent {
	return domain.ChangeEvent{Token: []byte(token), Article: a}
}
