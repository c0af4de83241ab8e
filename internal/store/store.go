// Package store owns every Instance, User, and Toot the crawler has
// learned, plus the pending-toot work queue. It is the single shared
// mutable state the crawl core touches — see spec's concurrency model: one
// fetch completes (parse + learn + enqueue) before the next begins, so the
// crawl loop is the only writer. Every method still takes the store's
// RWMutex (the write lock for mutations, the read lock for lookups), so
// Snapshot(), which the admin HTTP server calls from its own goroutine
// purely to read counters, is safe alongside the crawl.
package store

import (
	"sync"

	"github.com/klppl/spider/internal/apuri"
	"github.com/klppl/spider/internal/model"
)

// Store holds the in-memory social graph and the pending-toot queue.
type Store struct {
	mu sync.RWMutex

	instances map[string]*model.Instance
	users     map[string]*model.User
	toots     map[string]*model.Toot // key: URI
	todo      []string
	todoSet   map[string]struct{} // dedup guard for todo

	nbUserFull int
	nbSeenBy   int
	loops      int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		instances: make(map[string]*model.Instance),
		users:     make(map[string]*model.User),
		toots:     make(map[string]*model.Toot),
		todoSet:   make(map[string]struct{}),
	}
}

// LearnInstance idempotently records instanceURL.
func (s *Store) LearnInstance(instanceURL string) *model.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.learnInstanceLocked(instanceURL)
}

func (s *Store) learnInstanceLocked(instanceURL string) *model.Instance {
	if inst, ok := s.instances[instanceURL]; ok {
		return inst
	}
	inst := &model.Instance{URL: instanceURL}
	s.instances[instanceURL] = inst
	return inst
}

// LearnAccount idempotently inserts/updates a user. If the user already
// exists and its AcctID is empty, a non-empty acctID fills it in and bumps
// nb_user_full (§4.3). The user's home instance is also learned.
func (s *Store) LearnAccount(instanceURL, acct, acctID string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.learnAccountLocked(instanceURL, acct, acctID)
}

func (s *Store) learnAccountLocked(instanceURL, acct, acctID string) *model.User {
	key := instanceURL + "/" + acct
	u, ok := s.users[key]
	if !ok {
		u = &model.User{
			InstanceURL: instanceURL,
			Acct:        acct,
			SeenBy:      make(map[string]struct{}),
		}
		s.users[key] = u
		s.learnInstanceLocked(instanceURL)
	}
	if acctID != "" && u.AcctID == "" {
		u.AcctID = acctID
		s.nbUserFull++
	}
	return u
}

// LearnSeenBy records that (observerInstance, observerAcct) observed
// (subjectInstance, subjectAcct). Self-edges are suppressed.
func (s *Store) LearnSeenBy(subjectInstance, subjectAcct, observerInstance, observerAcct string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.learnAccountLocked(subjectInstance, subjectAcct, "")
	observerKey := observerInstance + "/" + observerAcct
	if observerKey == u.Key() {
		return
	}
	if _, already := u.SeenBy[observerKey]; already {
		return
	}
	u.SeenBy[observerKey] = struct{}{}
	s.nbSeenBy++
}

// LearnToot idempotently records a toot and enqueues its URI exactly once.
// If the toot already exists and fromThread is true, flips the existing
// toot's FromThread flag — used to suppress a redundant /context call on
// rediscovery (§4.3).
func (s *Store) LearnToot(uri, tootID, acct, localInstance, localID string, fromThread bool, favor, related int) *model.Toot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.toots[uri]; ok {
		if fromThread {
			t.FromThread = true
		}
		return t
	}

	t := &model.Toot{
		URI:           uri,
		TootID:        tootID,
		Acct:          acct,
		LocalInstance: localInstance,
		LocalID:       localID,
		FromThread:    fromThread,
		Favor:         favor,
		Related:       related,
	}
	s.toots[uri] = t
	s.enqueueLocked(uri)
	if ok, home, _ := apuri.ParseTootURI(uri); ok {
		s.learnInstanceLocked(home)
	}
	return t
}

// GetToot returns the toot for uri, if known.
func (s *Store) GetToot(uri string) (*model.Toot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.toots[uri]
	return t, ok
}

// GetUser returns the user for key (instance_url + "/" + acct), if known.
func (s *Store) GetUser(key string) (*model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[key]
	return u, ok
}

// SetTootSourceID records the toot's home-instance numeric ID once learned.
func (s *Store) SetTootSourceID(uri, sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.toots[uri]; ok {
		t.SourceID = sourceID
	}
}

// SetTootFavor records a freshly observed favorite count.
func (s *Store) SetTootFavor(uri string, favor int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.toots[uri]; ok {
		t.Favor = favor
	}
}

func (s *Store) enqueueLocked(uri string) {
	if _, ok := s.todoSet[uri]; ok {
		return
	}
	s.todoSet[uri] = struct{}{}
	s.todo = append(s.todo, uri)
}

// PopBatch removes and returns up to n URIs from the front of the pending
// queue, preserving FIFO order. Toots enqueued while a batch is being
// processed land in a later batch (§5 ordering guarantee).
func (s *Store) PopBatch(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.todo) {
		n = len(s.todo)
	}
	batch := make([]string, n)
	copy(batch, s.todo[:n])
	s.todo = s.todo[n:]
	for _, uri := range batch {
		delete(s.todoSet, uri)
	}
	return batch
}

// QueueLen returns the current pending-toot queue depth.
func (s *Store) QueueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.todo)
}

// IncLoop records one completed scheduler-loop iteration, surfaced by
// Snapshot's Loops field (§4.10).
func (s *Store) IncLoop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loops++
}

// RandomUserKeys returns up to n distinct user keys chosen uniformly at
// random via rnd. Uniform sampling (rather than deterministic FIFO over
// "unexplored" users) spreads fetches across the federation instead of
// concentrating load on the seed instance and its close neighbors (§4.7).
func (s *Store) RandomUserKeys(n int, rnd func(int) int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.users) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.users))
	for k := range s.users {
		keys = append(keys, k)
	}
	if n > len(keys) {
		n = len(keys)
	}
	picks := make([]string, n)
	for i := 0; i < n; i++ {
		j := i + rnd(len(keys)-i)
		keys[i], keys[j] = keys[j], keys[i]
		picks[i] = keys[i]
	}
	return picks
}

// RandomInstanceURL returns one instance URL chosen uniformly at random,
// or "" if no instances are known.
func (s *Store) RandomInstanceURL(rnd func(int) int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.instances) == 0 {
		return ""
	}
	urls := make([]string, 0, len(s.instances))
	for u := range s.instances {
		urls = append(urls, u)
	}
	return urls[rnd(len(urls))]
}

// Counts holds a point-in-time snapshot of the store's invariant counters,
// plus the scheduler's own loop counter (§4.10's /stats shape).
type Counts struct {
	Instances int `json:"instances"`
	Users     int `json:"users"`
	UsersFull int `json:"users_full"`
	Toots     int `json:"toots"`
	ToDo      int `json:"toots_todo"`
	SeenBy    int `json:"seen_by"`
	Loops     int `json:"loops"`
}

// Snapshot returns a consistent read of the store's sizes, for the
// scheduler's termination check, logging, and the admin server's /stats
// endpoint.
func (s *Store) Snapshot() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Instances: len(s.instances),
		Users:     len(s.users),
		UsersFull: s.nbUserFull,
		Toots:     len(s.toots),
		ToDo:      len(s.todo),
		SeenBy:    s.nbSeenBy,
		Loops:     s.loops,
	}
}
