package tracker

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/progress/internal/error_values"
	"github.com/limbo/progress/pkg/entity"
)

// GoalCache mirrors the user's goal rows, newest first. Whether a goal is
// "active" is always derived from end_date against the current time, never
// read from the stored status field, since time alone can invalidate it.
type GoalCache struct {
	gateway GoalGateway
	session AuthSession
	clock   Clock

	mu          sync.Mutex
	goals       []*entity.Goal
	active      *entity.Goal
	hasActive   bool
	initialized bool
}

func NewGoalCache(gateway GoalGateway, session AuthSession) *GoalCache {
	return NewGoalCacheWithClock(gateway, session, realClock{})
}

func NewGoalCacheWithClock(gateway GoalGateway, session AuthSession, clock Clock) *GoalCache {
	if gateway == nil || session == nil || clock == nil {
		log.Fatal("provided nil dependency to goal cache")
	}
	return &GoalCache{
		gateway: gateway,
		session: session,
		clock:   clock,
		goals:   make([]*entity.Goal, 0),
	}
}

// Initialize fetches once. Calls after the first successful fetch no-op.
func (gc *GoalCache) Initialize(ctx context.Context) error {
	gc.mu.Lock()
	done := gc.initialized
	gc.mu.Unlock()
	if done {
		return nil
	}
	if err := gc.FetchGoals(ctx); err != nil {
		return err
	}
	gc.mu.Lock()
	gc.initialized = true
	gc.mu.Unlock()
	return nil
}

// FetchGoals reloads the user's goals and re-derives the active goal.
func (gc *GoalCache) FetchGoals(ctx context.Context) error {
	uid, err := gc.session.CurrentUser()
	if err != nil {
		return err
	}
	rows, err := gc.gateway.GetByUserID(ctx, uid)
	if err != nil {
		return errorvalues.Remote("fetch goals", err)
	}
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.goals = rows
	gc.active = gc.activeGoalLocked()
	gc.hasActive = gc.active != nil
	return nil
}

func (gc *GoalCache) Goals() []*entity.Goal {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	out := make([]*entity.Goal, len(gc.goals))
	copy(out, gc.goals)
	return out
}

// Latest returns the most recently created cached goal, or nil.
func (gc *GoalCache) Latest() *entity.Goal {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if len(gc.goals) == 0 {
		return nil
	}
	return gc.goals[0]
}

// CurrentActiveGoal recomputes the active goal from the cache on every
// call: among goals whose end_date is strictly in the future, the one
// ending soonest. Nil when none qualifies.
func (gc *GoalCache) CurrentActiveGoal() *entity.Goal {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.activeGoalLocked()
}

func (gc *GoalCache) HasActiveGoal() bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.activeGoalLocked() != nil
}

// SoonestUpcoming asks the gateway for the goal with the smallest end_date
// not before today. Returns ErrGoalNotFound when there is none.
func (gc *GoalCache) SoonestUpcoming(ctx context.Context) (*entity.Goal, error) {
	uid, err := gc.session.CurrentUser()
	if err != nil {
		return nil, err
	}
	goal, err := gc.gateway.GetUpcoming(ctx, uid, midnight(gc.clock.Now()))
	if err != nil {
		if err == errorvalues.ErrGoalNotFound {
			return nil, err
		}
		return nil, errorvalues.Remote("fetch upcoming goal", err)
	}
	return goal, nil
}

func (gc *GoalCache) Add(ctx context.Context, goal *entity.Goal) (*entity.Goal, error) {
	uid, err := gc.session.CurrentUser()
	if err != nil {
		return nil, err
	}
	goal.UserID = uid
	id, err := gc.gateway.Create(ctx, goal)
	if err != nil {
		return nil, errorvalues.Remote("insert goal", err)
	}
	if err := gc.FetchGoals(ctx); err != nil {
		return nil, err
	}
	gc.mu.Lock()
	defer gc.mu.Unlock()
	for _, g := range gc.goals {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, errorvalues.ErrGoalNotFound
}

func (gc *GoalCache) Update(ctx context.Context, goal *entity.Goal) error {
	uid, err := gc.session.CurrentUser()
	if err != nil {
		return err
	}
	if err := gc.checkOwned(goal.ID, uid); err != nil {
		return err
	}
	if err := gc.gateway.Update(ctx, goal); err != nil {
		return errorvalues.Remote("update goal", err)
	}
	return gc.FetchGoals(ctx)
}

func (gc *GoalCache) Delete(ctx context.Context, id uuid.UUID) error {
	uid, err := gc.session.CurrentUser()
	if err != nil {
		return err
	}
	if err := gc.checkOwned(id, uid); err != nil {
		return err
	}
	if err := gc.gateway.Delete(ctx, id); err != nil {
		return errorvalues.Remote("delete goal", err)
	}
	return gc.FetchGoals(ctx)
}

func (gc *GoalCache) checkOwned(id, uid uuid.UUID) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	for _, g := range gc.goals {
		if g.ID == id {
			if g.UserID != uid {
				return errorvalues.ErrWrongOwner
			}
			return nil
		}
	}
	return errorvalues.ErrGoalNotFound
}

func (gc *GoalCache) activeGoalLocked() *entity.Goal {
	now := gc.clock.Now()
	var best *entity.Goal
	for _, g := range gc.goals {
		if !g.EndDate.After(now) {
			continue
		}
		if best == nil || g.EndDate.Before(best.EndDate) {
			best = g
		}
	}
	return best
}
