// Package memory provides an in-memory workforce.Store for tests, the CLI
// and development servers.
package memory

import (
	"context"
	"sync"

	"github.com/warp/deploy-engine/generic"
	"github.com/warp/deploy-engine/workforce"
)

// =============================================================================
// MEMORY STORE - Insertion-ordered collections behind one RWMutex
// =============================================================================

type Store struct {
	mu          sync.RWMutex
	operatives  collection[workforce.OperativeID, workforce.Operative]
	sites       collection[workforce.SiteID, workforce.Site]
	clients     collection[workforce.ClientID, workforce.Client]
	assignments collection[workforce.AssignmentID, workforce.Assignment]
}

var _ workforce.Store = (*Store)(nil)

func New() *Store {
	s := &Store{}
	s.resetLocked()
	return s
}

// NewFromSnapshot returns a store holding a copy of snap.
func NewFromSnapshot(snap workforce.Snapshot) *Store {
	s := New()
	s.Seed(snap)
	return s
}

// Seed upserts every record in snap.
func (s *Store) Seed(snap workforce.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range snap.Operatives {
		s.operatives.put(o.ID, cloneOperative(o))
	}
	for _, site := range snap.Sites {
		s.sites.put(site.ID, cloneSite(site))
	}
	for _, c := range snap.Clients {
		s.clients.put(c.ID, cloneClient(c))
	}
	for _, a := range snap.Assignments {
		s.assignments.put(a.ID, a)
	}
}

func (s *Store) resetLocked() {
	s.operatives = newCollection[workforce.OperativeID, workforce.Operative]()
	s.sites = newCollection[workforce.SiteID, workforce.Site]()
	s.clients = newCollection[workforce.ClientID, workforce.Client]()
	s.assignments = newCollection[workforce.AssignmentID, workforce.Assignment]()
}

// =============================================================================
// READER
// =============================================================================

func (s *Store) ListOperatives(_ context.Context) ([]workforce.Operative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.operatives.list()
	for i := range out {
		out[i] = cloneOperative(out[i])
	}
	return out, nil
}

func (s *Store) ListSites(_ context.Context) ([]workforce.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.sites.list()
	for i := range out {
		out[i] = cloneSite(out[i])
	}
	return out, nil
}

func (s *Store) ListAssignments(_ context.Context) ([]workforce.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assignments.list(), nil
}

func (s *Store) ListClients(_ context.Context) ([]workforce.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.clients.list()
	for i := range out {
		out[i] = cloneClient(out[i])
	}
	return out, nil
}

// =============================================================================
// WRITER
// =============================================================================

func (s *Store) CreateAssignment(_ context.Context, a workforce.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments.put(a.ID, a)
	return nil
}

func (s *Store) UpdateAssignmentStatus(_ context.Context, id workforce.AssignmentID, status workforce.AssignmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments.get(id)
	if !ok {
		return generic.NewNotFound(generic.ErrAssignmentNotFound, "assignment", string(id))
	}
	a.Status = status
	s.assignments.put(id, a)
	return nil
}

func (s *Store) DeleteAssignment(_ context.Context, id workforce.AssignmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.assignments.remove(id) {
		return generic.NewNotFound(generic.ErrAssignmentNotFound, "assignment", string(id))
	}
	return nil
}

func (s *Store) UpsertCertificates(_ context.Context, operativeID workforce.OperativeID, certs []workforce.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operatives.get(operativeID)
	if !ok {
		return generic.NewNotFound(generic.ErrOperativeNotFound, "operative", string(operativeID))
	}
	op.Certificates = append([]workforce.Certificate(nil), certs...)
	s.operatives.put(operativeID, op)
	return nil
}

func (s *Store) UpsertRestriction(_ context.Context, operativeID workforce.OperativeID, r workforce.Restriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.operatives.get(operativeID)
	if !ok {
		return generic.NewNotFound(generic.ErrOperativeNotFound, "operative", string(operativeID))
	}
	s.operatives.put(operativeID, workforce.UpsertRestriction(op, r))
	return nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) SaveOperative(_ context.Context, o workforce.Operative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operatives.put(o.ID, cloneOperative(o))
	return nil
}

func (s *Store) SaveSite(_ context.Context, site workforce.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites.put(site.ID, cloneSite(site))
	return nil
}

func (s *Store) SaveClient(_ context.Context, c workforce.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients.put(c.ID, cloneClient(c))
	return nil
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

// =============================================================================
// ORDERED COLLECTION
// =============================================================================

// collection keeps first-insertion order so list output is stable.
type collection[K comparable, V any] struct {
	order []K
	items map[K]V
}

func newCollection[K comparable, V any]() collection[K, V] {
	return collection[K, V]{items: make(map[K]V)}
}

func (c *collection[K, V]) put(k K, v V) {
	if _, ok := c.items[k]; !ok {
		c.order = append(c.order, k)
	}
	c.items[k] = v
}

func (c *collection[K, V]) get(k K) (V, bool) {
	v, ok := c.items[k]
	return v, ok
}

func (c *collection[K, V]) remove(k K) bool {
	if _, ok := c.items[k]; !ok {
		return false
	}
	delete(c.items, k)
	for i, existing := range c.order {
		if existing == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *collection[K, V]) list() []V {
	out := make([]V, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.items[k])
	}
	return out
}

// cloneOperative copies the nested slices so callers cannot alias stored
// state.
func cloneOperative(o workforce.Operative) workforce.Operative {
	o.Certificates = append([]workforce.Certificate(nil), o.Certificates...)
	o.Restrictions = append([]workforce.Restriction(nil), o.Restrictions...)
	return o
}

func cloneSite(site workforce.Site) workforce.Site {
	site.RequiredTrades = append([]string(nil), site.RequiredTrades...)
	return site
}

func cloneClient(c workforce.Client) workforce.Client {
	c.JobTypes = append([]workforce.JobType(nil), c.JobTypes...)
	return c
}
