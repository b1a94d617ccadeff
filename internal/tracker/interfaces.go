package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/limbo/progress/pkg/entity"
)

// ActivityGateway is the remote table the tracker mirrors. Implemented by
// repository.ActivitiesRepository; narrowed here so tests can fake it.
type ActivityGateway interface {
	Create(ctx context.Context, activity *entity.Activity) (uuid.UUID, error)
	CreateBatch(ctx context.Context, activities []*entity.Activity) error
	GetByUserID(ctx context.Context, uid uuid.UUID) ([]*entity.Activity, error)
	GetByUserAndGoal(ctx context.Context, uid, goalID uuid.UUID) ([]*entity.Activity, error)
	Update(ctx context.Context, activity *entity.Activity) error
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
	SetStarted(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	SetFinished(ctx context.Context, id uuid.UUID, endedAt time.Time, duration int) error
	ExpireBatch(ctx context.Context, ids []uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// GoalGateway is the remote goals table. Implemented by repository.GoalsRepository.
type GoalGateway interface {
	Create(ctx context.Context, goal *entity.Goal) (uuid.UUID, error)
	GetByUserID(ctx context.Context, uid uuid.UUID) ([]*entity.Goal, error)
	GetUpcoming(ctx context.Context, uid uuid.UUID, from time.Time) (*entity.Goal, error)
	Update(ctx context.Context, goal *entity.Goal) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuthSession provides the identity every scoped operation runs under.
// Returns errorvalues.ErrAuthRequired when nobody is signed in.
type AuthSession interface {
	CurrentUser() (uuid.UUID, error)
}
