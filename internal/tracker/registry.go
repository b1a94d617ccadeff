package tracker

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Containers bundles the per-user state holders. One pair lives per
// authenticated user; its lifetime tracks the session, not the process.
type Containers struct {
	Activities *ActivityTracker
	Goals      *GoalCache
}

// Registry hands out Containers keyed by user id, building them lazily on
// first use. A freshly built tracker loads its cache and restores any
// timer that was running before the process restarted.
type Registry struct {
	activities ActivityGateway
	goals      GoalGateway
	clock      Clock

	mu    sync.Mutex
	users map[uuid.UUID]*Containers
}

func NewRegistry(activities ActivityGateway, goals GoalGateway) *Registry {
	return NewRegistryWithClock(activities, goals, realClock{})
}

func NewRegistryWithClock(activities ActivityGateway, goals GoalGateway, clock Clock) *Registry {
	if activities == nil || goals == nil || clock == nil {
		log.Fatal("provided nil dependency to tracker registry")
	}
	return &Registry{
		activities: activities,
		goals:      goals,
		clock:      clock,
		users:      make(map[uuid.UUID]*Containers),
	}
}

func (r *Registry) ForUser(ctx context.Context, uid uuid.UUID) (*Containers, error) {
	r.mu.Lock()
	if c, ok := r.users[uid]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	session := staticSession{uid: uid}
	c := &Containers{
		Activities: NewActivityTrackerWithClock(r.activities, session, r.clock),
		Goals:      NewGoalCacheWithClock(r.goals, session, r.clock),
	}
	if err := c.Activities.FetchActivities(ctx); err != nil {
		return nil, err
	}
	if err := c.Activities.RestoreTimerState(ctx); err != nil {
		return nil, err
	}
	if err := c.Goals.Initialize(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[uid]; ok {
		// lost the build race, keep the first pair and its timer
		c.Activities.Shutdown()
		return existing, nil
	}
	r.users[uid] = c
	return c, nil
}

// Drop tears down a user's containers on sign-out, cancelling any
// running tick source.
func (r *Registry) Drop(uid uuid.UUID) {
	r.mu.Lock()
	c, ok := r.users[uid]
	delete(r.users, uid)
	r.mu.Unlock()
	if ok {
		c.Activities.Shutdown()
	}
}

// Shutdown cancels every running tick source. Registered as a cleanup job.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, c := range r.users {
		c.Activities.Shutdown()
		delete(r.users, uid)
	}
	return nil
}

// staticSession pins the auth identity of a per-user container.
type staticSession struct {
	uid uuid.UUID
}

func (s staticSession) CurrentUser() (uuid.UUID, error) {
	return s.uid, nil
}
