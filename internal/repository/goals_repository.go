package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	errorvalues "github.com/limbo/progress/internal/error_values"
	"github.com/limbo/progress/pkg/cleanup"
	"github.com/limbo/progress/pkg/entity"
)

const goalColumns = `id, user_id, title, description, target_points, status, end_date, created_at`

type GoalsRepository struct {
	conn PgConnection
}

func NewGoalsRepo(cfg DBConfig) *GoalsRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for goalsRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for goalsRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &GoalsRepository{
		conn: pool,
	}
}

func NewGoalsRepoWithConn(conn PgConnection) *GoalsRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for goalsRepo: " + err.Error())
	}
	return &GoalsRepository{
		conn: conn,
	}
}

func (gr *GoalsRepository) Create(ctx context.Context, goal *entity.Goal) (uuid.UUID, error) {
	var id uuid.UUID
	row := gr.conn.QueryRow(ctx, `INSERT INTO goals (user_id, title, description, target_points, end_date) VALUES ($1, $2, $3, $4, $5) RETURNING id;`,
		goal.UserID,
		goal.Title,
		goal.Description,
		goal.TargetPoints,
		goal.EndDate,
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
		return uuid.UUID{}, errors.New("creating goal db error: " + err.Error())
	}
	return id, nil
}

func (gr *GoalsRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Goal, error) {
	var g entity.Goal
	row := gr.conn.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1;`, id)
	if err := scanGoal(row, &g); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrGoalNotFound
		}
		return nil, errors.New("getting goal by id error: " + err.Error())
	}
	return &g, nil
}

func (gr *GoalsRepository) GetByUserID(ctx context.Context, uid uuid.UUID) ([]*entity.Goal, error) {
	goals := make([]*entity.Goal, 0)
	rows, err := gr.conn.Query(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at DESC;`, uid)
	if err != nil {
		return nil, errors.New("getting goals by uid error: " + err.Error())
	}
	defer rows.Close()
	for rows.Next() {
		g := entity.Goal{}
		if err = scanGoal(rows, &g); err != nil {
			return nil, errors.New("unmarhalling goal error: " + err.Error())
		}
		goals = append(goals, &g)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected error after scanning: " + rows.Err().Error())
	}
	return goals, nil
}

func (gr *GoalsRepository) GetUpcoming(ctx context.Context, uid uuid.UUID, from time.Time) (*entity.Goal, error) {
	var g entity.Goal
	row := gr.conn.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE user_id = $1 AND end_date >= $2 ORDER BY end_date ASC LIMIT 1;`, uid, from)
	if err := scanGoal(row, &g); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrGoalNotFound
		}
		return nil, errors.New("getting upcoming goal error: " + err.Error())
	}
	return &g, nil
}

func (gr *GoalsRepository) Update(ctx context.Context, goal *entity.Goal) error {
	ct, err := gr.conn.Exec(ctx, `UPDATE goals SET title = $1, description = $2, target_points = $3, status = $4, end_date = $5 WHERE id = $6;`,
		goal.Title, goal.Description, goal.TargetPoints, goal.Status, goal.EndDate, goal.ID,
	)
	if err != nil {
		return errors.New("error updating goal: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrGoalNotFound
	}
	return nil
}

func (gr *GoalsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := gr.conn.Exec(ctx, `DELETE FROM goals WHERE id = $1;`, id)
	if err != nil {
		return errors.New("error deleting goal: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrGoalNotFound
	}
	return nil
}

func scanGoal(row pgx.Row, g *entity.Goal) error {
	return row.Scan(&g.ID, &g.UserID, &g.Title, &g.Description, &g.TargetPoints, &g.Status, &g.EndDate, &g.CreatedAt)
}
