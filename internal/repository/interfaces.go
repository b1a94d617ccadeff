package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/limbo/progress/pkg/entity"
)

type UsersRepositoryI interface {
	// Creates new user in database
	Create(ctx context.Context, user *entity.User) error
	// Looks up user by name. Can be used for login
	FindByName(ctx context.Context, name string) (*entity.User, error)
	// Looks up user by uid. Can be used for authorization middleware
	FindByID(ctx context.Context, uid uuid.UUID) (*entity.User, error)
	// Updates user's info
	Update(ctx context.Context, user *entity.User) error
	// Deletes user
	Delete(ctx context.Context, uid uuid.UUID) error
}

type ActivitiesRepositoryI interface {
	// Inserts one activity. Only UserID, Title, Points, GoalID are necessary
	Create(ctx context.Context, activity *entity.Activity) (uuid.UUID, error)
	// Inserts a batch of activities in one round-trip
	CreateBatch(ctx context.Context, activities []*entity.Activity) error
	// Searches activity with given id
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Activity, error)
	// Lists every activity owned by uid, newest first
	GetByUserID(ctx context.Context, uid uuid.UUID) ([]*entity.Activity, error)
	// Lists activities of uid attached to goalID, oldest first
	GetByUserAndGoal(ctx context.Context, uid, goalID uuid.UUID) ([]*entity.Activity, error)
	// Updates descriptive fields by ID (ID in activity is necessary)
	Update(ctx context.Context, activity *entity.Activity) error
	// Sets the completed checkbox with its timestamp
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error
	// Moves activity to active with the given start time
	SetStarted(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	// Moves activity to done, recording end time and total duration seconds
	SetFinished(ctx context.Context, id uuid.UUID, endedAt time.Time, duration int) error
	// Reclassifies the given activities as expired in a single statement
	ExpireBatch(ctx context.Context, ids []uuid.UUID) error
	// Deletes activity with id
	Delete(ctx context.Context, id uuid.UUID) error
}

type GoalsRepositoryI interface {
	// Creates new goal. UserID, Title, EndDate are necessary
	Create(ctx context.Context, goal *entity.Goal) (uuid.UUID, error)
	// Searches goal with given id
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Goal, error)
	// Lists goals owned by uid, newest first
	GetByUserID(ctx context.Context, uid uuid.UUID) ([]*entity.Goal, error)
	// Returns the goal of uid with the smallest end_date not before from
	GetUpcoming(ctx context.Context, uid uuid.UUID, from time.Time) (*entity.Goal, error)
	// Updates goal by ID (ID in goal is necessary)
	Update(ctx context.Context, goal *entity.Goal) error
	// Deletes goal with id
	Delete(ctx context.Context, id uuid.UUID) error
}

type DBConfig interface {
	ConnString() string
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGCfg struct {
	Address  string
	Username string
	Password string
	DB       string
}

func (pgcfg *PGCfg) ConnString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB)
}
