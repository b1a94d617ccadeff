package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	errorvalues "github.com/limbo/progress/internal/error_values"
	"github.com/limbo/progress/pkg/cleanup"
	"github.com/limbo/progress/pkg/entity"
)

const activityColumns = `id, user_id, goal_id, title, points, status, completed, completed_at, start_time, end_time, duration, created_at`

type ActivitiesRepository struct {
	conn PgConnection
}

func NewActivitiesRepo(cfg DBConfig) *ActivitiesRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for activitiesRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for activitiesRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &ActivitiesRepository{
		conn: pool,
	}
}

func NewActivitiesRepoWithConn(conn PgConnection) *ActivitiesRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for activitiesRepo: " + err.Error())
	}
	return &ActivitiesRepository{
		conn: conn,
	}
}

func (ar *ActivitiesRepository) Create(ctx context.Context, activity *entity.Activity) (uuid.UUID, error) {
	var id uuid.UUID
	row := ar.conn.QueryRow(ctx, `INSERT INTO activities (user_id, goal_id, title, points) VALUES ($1, $2, $3, $4) RETURNING id;`,
		activity.UserID,
		activity.GoalID,
		activity.Title,
		activity.Points,
	)
	if err := row.Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// FK violation
			case "23503":
				return uuid.UUID{}, errorvalues.ErrOwnerNotFound
			}
		}
		return uuid.UUID{}, errors.New("creating activity db error: " + err.Error())
	}
	return id, nil
}

func (ar *ActivitiesRepository) CreateBatch(ctx context.Context, activities []*entity.Activity) error {
	if len(activities) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(activities))
	args := make([]any, 0, len(activities)*4)
	for i, a := range activities {
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4))
		args = append(args, a.UserID, a.GoalID, a.Title, a.Points)
	}
	query := `INSERT INTO activities (user_id, goal_id, title, points) VALUES ` + strings.Join(placeholders, ", ") + `;`
	_, err := ar.conn.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return errorvalues.ErrOwnerNotFound
		}
		return errors.New("creating activities batch db error: " + err.Error())
	}
	return nil
}

func (ar *ActivitiesRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Activity, error) {
	var a entity.Activity
	row := ar.conn.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1;`, id)
	if err := scanActivity(row, &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrActivityNotFound
		}
		return nil, errors.New("getting activity by id error: " + err.Error())
	}
	return &a, nil
}

func (ar *ActivitiesRepository) GetByUserID(ctx context.Context, uid uuid.UUID) ([]*entity.Activity, error) {
	rows, err := ar.conn.Query(ctx, `SELECT `+activityColumns+` FROM activities WHERE user_id = $1 ORDER BY created_at DESC;`, uid)
	if err != nil {
		return nil, errors.New("getting activities by uid error: " + err.Error())
	}
	defer rows.Close()
	return collectActivities(rows)
}

func (ar *ActivitiesRepository) GetByUserAndGoal(ctx context.Context, uid, goalID uuid.UUID) ([]*entity.Activity, error) {
	rows, err := ar.conn.Query(ctx, `SELECT `+activityColumns+` FROM activities WHERE user_id = $1 AND goal_id = $2 ORDER BY created_at ASC;`, uid, goalID)
	if err != nil {
		return nil, errors.New("getting activities by goal error: " + err.Error())
	}
	defer rows.Close()
	return collectActivities(rows)
}

func (ar *ActivitiesRepository) Update(ctx context.Context, activity *entity.Activity) error {
	ct, err := ar.conn.Exec(ctx, `UPDATE activities SET title = $1, points = $2, goal_id = $3 WHERE id = $4;`,
		activity.Title, activity.Points, activity.GoalID, activity.ID,
	)
	if err != nil {
		return errors.New("error updating activity: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrActivityNotFound
	}
	return nil
}

func (ar *ActivitiesRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	ct, err := ar.conn.Exec(ctx, `UPDATE activities SET completed = TRUE, completed_at = $1 WHERE id = $2;`, at, id)
	if err != nil {
		return errors.New("error completing activity: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrActivityNotFound
	}
	return nil
}

func (ar *ActivitiesRepository) SetStarted(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	ct, err := ar.conn.Exec(ctx, `UPDATE activities SET status = 'active', start_time = $1 WHERE id = $2;`, startedAt, id)
	if err != nil {
		return errors.New("error starting activity: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrActivityNotFound
	}
	return nil
}

func (ar *ActivitiesRepository) SetFinished(ctx context.Context, id uuid.UUID, endedAt time.Time, duration int) error {
	ct, err := ar.conn.Exec(ctx, `UPDATE activities SET status = 'done', end_time = $1, duration = $2 WHERE id = $3;`, endedAt, duration, id)
	if err != nil {
		return errors.New("error finishing activity: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrActivityNotFound
	}
	return nil
}

// ExpireBatch flips every given activity to expired with one statement,
// so the lazy sweep stays a single round-trip however many rows are overdue.
func (ar *ActivitiesRepository) ExpireBatch(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := ar.conn.Exec(ctx, `UPDATE activities SET status = 'expired' WHERE id = ANY($1);`, ids)
	if err != nil {
		return errors.New("error expiring activities: " + err.Error())
	}
	return nil
}

func (ar *ActivitiesRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := ar.conn.Exec(ctx, `DELETE FROM activities WHERE id = $1;`, id)
	if err != nil {
		return errors.New("error deleting activity: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrActivityNotFound
	}
	return nil
}

func scanActivity(row pgx.Row, a *entity.Activity) error {
	return row.Scan(&a.ID, &a.UserID, &a.GoalID, &a.Title, &a.Points, &a.Status,
		&a.Completed, &a.CompletedAt, &a.StartTime, &a.EndTime, &a.Duration, &a.CreatedAt)
}

func collectActivities(rows pgx.Rows) ([]*entity.Activity, error) {
	activities := make([]*entity.Activity, 0)
	for rows.Next() {
		a := entity.Activity{}
		if err := scanActivity(rows, &a); err != nil {
			return nil, errors.New("unmarhalling activity error: " + err.Error())
		}
		activities = append(activities, &a)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected error after scanning: " + rows.Err().Error())
	}
	return activities, nil
}
