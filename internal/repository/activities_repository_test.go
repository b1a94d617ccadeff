package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/lib/pq"
	errorvalues "github.com/limbo/progress/internal/error_values"
	"github.com/limbo/progress/internal/repository"
	"github.com/limbo/progress/pkg/entity"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/pressly/goose"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	userID = uuid.New()
)

var activityCols = []string{"id", "user_id", "goal_id", "title", "points", "status", "completed", "completed_at", "start_time", "end_time", "duration", "created_at"}

func activityRow(a *entity.Activity) *pgxmock.Rows {
	return pgxmock.NewRows(activityCols).AddRow(
		a.ID, a.UserID, a.GoalID, a.Title, a.Points, a.Status,
		a.Completed, a.CompletedAt, a.StartTime, a.EndTime, a.Duration, a.CreatedAt,
	)
}

func testActivity() *entity.Activity {
	return &entity.Activity{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Title:     "test_activity",
		Points:    10,
		Status:    entity.ActivityStatusPending,
		Duration:  0,
		CreatedAt: time.Now(),
	}
}

func TestCreateActivity(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	activity := testActivity()
	query := regexp.QuoteMeta(`INSERT INTO activities (user_id, goal_id, title, points) VALUES ($1, $2, $3, $4) RETURNING id;`)
	t.Run("successfully created", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(activity.UserID, activity.GoalID, activity.Title, activity.Points).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(activity.ID))
		id, err := repo.Create(ctx, activity)
		assert.NoError(t, err)
		assert.Equal(t, activity.ID, id)
	})
	t.Run("owner fk violation", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(activity.UserID, activity.GoalID, activity.Title, activity.Points).
			WillReturnError(&pgconn.PgError{
				Code: "23503",
			})
		_, err := repo.Create(ctx, activity)
		assert.ErrorIs(t, err, errorvalues.ErrOwnerNotFound)
	})
	t.Run("db error", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(activity.UserID, activity.GoalID, activity.Title, activity.Points).
			WillReturnError(errors.New("db error"))
		_, err := repo.Create(ctx, activity)
		assert.Error(t, err)
	})
}

func TestCreateActivitiesBatch(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	first := testActivity()
	second := testActivity()
	query := regexp.QuoteMeta(`INSERT INTO activities (user_id, goal_id, title, points) VALUES ($1, $2, $3, $4), ($5, $6, $7, $8);`)
	t.Run("two rows in one statement", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(first.UserID, first.GoalID, first.Title, first.Points,
				second.UserID, second.GoalID, second.Title, second.Points).
			WillReturnResult(pgxmock.NewResult("INSERT", 2))
		err := repo.CreateBatch(ctx, []*entity.Activity{first, second})
		assert.NoError(t, err)
	})
	t.Run("empty batch is a no-op", func(t *testing.T) {
		err := repo.CreateBatch(ctx, nil)
		assert.NoError(t, err)
	})
	t.Run("owner fk violation", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(first.UserID, first.GoalID, first.Title, first.Points,
				second.UserID, second.GoalID, second.Title, second.Points).
			WillReturnError(&pgconn.PgError{
				Code: "23503",
			})
		err := repo.CreateBatch(ctx, []*entity.Activity{first, second})
		assert.ErrorIs(t, err, errorvalues.ErrOwnerNotFound)
	})
}

func TestGetActivityByID(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	activity := testActivity()
	query := regexp.QuoteMeta(`SELECT id, user_id, goal_id, title, points, status, completed, completed_at, start_time, end_time, duration, created_at FROM activities WHERE id = $1;`)
	t.Run("found", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(activity.ID).
			WillReturnRows(activityRow(activity))
		result, err := repo.GetByID(ctx, activity.ID)
		assert.NoError(t, err)
		assert.Equal(t, *activity, *result)
	})
	t.Run("not found", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(activity.ID).
			WillReturnError(pgx.ErrNoRows)
		_, err := repo.GetByID(ctx, activity.ID)
		assert.ErrorIs(t, err, errorvalues.ErrActivityNotFound)
	})
	t.Run("db error", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(activity.ID).
			WillReturnError(errors.New("db error"))
		_, err := repo.GetByID(ctx, activity.ID)
		assert.Error(t, err)
	})
}

func TestGetActivitiesByUserID(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	uid := uuid.New()
	activity := testActivity()
	activity.UserID = uid
	query := regexp.QuoteMeta(`SELECT id, user_id, goal_id, title, points, status, completed, completed_at, start_time, end_time, duration, created_at FROM activities WHERE user_id = $1 ORDER BY created_at DESC;`)
	t.Run("found", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(uid).
			WillReturnRows(activityRow(activity))
		result, err := repo.GetByUserID(ctx, uid)
		assert.NoError(t, err)
		assert.Len(t, result, 1)
		assert.Equal(t, *activity, *result[0])
	})
	t.Run("no rows yields empty slice", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(uid).
			WillReturnRows(pgxmock.NewRows(activityCols))
		result, err := repo.GetByUserID(ctx, uid)
		assert.NoError(t, err)
		assert.Empty(t, result)
	})
	t.Run("db error", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(uid).
			WillReturnError(errors.New("db error"))
		_, err := repo.GetByUserID(ctx, uid)
		assert.Error(t, err)
	})
}

func TestGetActivitiesByUserAndGoal(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	uid := uuid.New()
	goalID := uuid.New()
	activity := testActivity()
	activity.UserID = uid
	activity.GoalID = &goalID
	query := regexp.QuoteMeta(`SELECT id, user_id, goal_id, title, points, status, completed, completed_at, start_time, end_time, duration, created_at FROM activities WHERE user_id = $1 AND goal_id = $2 ORDER BY created_at ASC;`)
	t.Run("found", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(uid, goalID).
			WillReturnRows(activityRow(activity))
		result, err := repo.GetByUserAndGoal(ctx, uid, goalID)
		assert.NoError(t, err)
		assert.Len(t, result, 1)
		assert.Equal(t, goalID, *result[0].GoalID)
	})
	t.Run("db error", func(t *testing.T) {
		conn.ExpectQuery(query).
			WithArgs(uid, goalID).
			WillReturnError(errors.New("db error"))
		_, err := repo.GetByUserAndGoal(ctx, uid, goalID)
		assert.Error(t, err)
	})
}

func TestUpdateActivity(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	activity := testActivity()
	query := regexp.QuoteMeta(`UPDATE activities SET title = $1, points = $2, goal_id = $3 WHERE id = $4;`)
	t.Run("updated", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(activity.Title, activity.Points, activity.GoalID, activity.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		err := repo.Update(ctx, activity)
		assert.NoError(t, err)
	})
	t.Run("not found", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(activity.Title, activity.Points, activity.GoalID, activity.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err := repo.Update(ctx, activity)
		assert.ErrorIs(t, err, errorvalues.ErrActivityNotFound)
	})
	t.Run("db error", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(activity.Title, activity.Points, activity.GoalID, activity.ID).
			WillReturnError(errors.New("db error"))
		err := repo.Update(ctx, activity)
		assert.Error(t, err)
	})
}

func TestMarkActivityCompleted(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	id := uuid.New()
	at := time.Now()
	query := regexp.QuoteMeta(`UPDATE activities SET completed = TRUE, completed_at = $1 WHERE id = $2;`)
	t.Run("completed", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(at, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		err := repo.MarkCompleted(ctx, id, at)
		assert.NoError(t, err)
	})
	t.Run("not found", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(at, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err := repo.MarkCompleted(ctx, id, at)
		assert.ErrorIs(t, err, errorvalues.ErrActivityNotFound)
	})
}

func TestSetActivityStarted(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	id := uuid.New()
	startedAt := time.Now()
	query := regexp.QuoteMeta(`UPDATE activities SET status = 'active', start_time = $1 WHERE id = $2;`)
	t.Run("started", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(startedAt, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		err := repo.SetStarted(ctx, id, startedAt)
		assert.NoError(t, err)
	})
	t.Run("not found", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(startedAt, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err := repo.SetStarted(ctx, id, startedAt)
		assert.ErrorIs(t, err, errorvalues.ErrActivityNotFound)
	})
}

func TestSetActivityFinished(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	id := uuid.New()
	endedAt := time.Now()
	query := regexp.QuoteMeta(`UPDATE activities SET status = 'done', end_time = $1, duration = $2 WHERE id = $3;`)
	t.Run("finished", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(endedAt, 1500, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		err := repo.SetFinished(ctx, id, endedAt, 1500)
		assert.NoError(t, err)
	})
	t.Run("not found", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(endedAt, 1500, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err := repo.SetFinished(ctx, id, endedAt, 1500)
		assert.ErrorIs(t, err, errorvalues.ErrActivityNotFound)
	})
}

func TestExpireActivitiesBatch(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	query := regexp.QuoteMeta(`UPDATE activities SET status = 'expired' WHERE id = ANY($1);`)
	t.Run("expired in one statement", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(ids).
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))
		err := repo.ExpireBatch(ctx, ids)
		assert.NoError(t, err)
	})
	t.Run("empty set is a no-op", func(t *testing.T) {
		err := repo.ExpireBatch(ctx, nil)
		assert.NoError(t, err)
	})
	t.Run("db error", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(ids).
			WillReturnError(errors.New("db error"))
		err := repo.ExpireBatch(ctx, ids)
		assert.Error(t, err)
	})
}

func TestDeleteActivity(t *testing.T) {
	conn, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	repo := repository.NewActivitiesRepoWithConn(conn)
	id := uuid.New()
	query := regexp.QuoteMeta(`DELETE FROM activities WHERE id = $1;`)
	t.Run("deleted", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		err := repo.Delete(ctx, id)
		assert.NoError(t, err)
	})
	t.Run("not found", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		err := repo.Delete(ctx, id)
		assert.ErrorIs(t, err, errorvalues.ErrActivityNotFound)
	})
	t.Run("db error", func(t *testing.T) {
		conn.ExpectExec(query).
			WithArgs(id).
			WillReturnError(errors.New("db error"))
		err := repo.Delete(ctx, id)
		assert.Error(t, err)
	})
}

func TestActivitiesIntegrational(t *testing.T) {
	cfg := setupTestDB(t)
	repo := repository.NewActivitiesRepo(cfg)
	activities := []*entity.Activity{}
	for i := 0; i < 5; i++ {
		activities = append(activities, &entity.Activity{
			UserID: userID,
			Title:  fmt.Sprintf("activity_n%d", i),
			Points: i + 1,
		})
	}
	ctx := context.Background()
	t.Run("create", func(t *testing.T) {
		t.Run("success", func(t *testing.T) {
			id, err := repo.Create(ctx, activities[0])
			assert.NoError(t, err)
			activities[0].ID = id
		})
		t.Run("unknown user error", func(t *testing.T) {
			_, err := repo.Create(ctx, &entity.Activity{
				UserID: uuid.New(),
				Title:  "ttt",
			})
			assert.ErrorIs(t, err, errorvalues.ErrOwnerNotFound)
		})
		t.Run("unknown goal error", func(t *testing.T) {
			goalID := uuid.New()
			_, err := repo.Create(ctx, &entity.Activity{
				UserID: userID,
				GoalID: &goalID,
				Title:  "ttt",
			})
			assert.ErrorIs(t, err, errorvalues.ErrOwnerNotFound)
		})
		t.Run("append more", func(t *testing.T) {
			for i := 1; i < 5; i++ {
				id, err := repo.Create(ctx, activities[i])
				assert.NoError(t, err)
				activities[i].ID = id
			}
		})
	})
	t.Run("get activities by user_id", func(t *testing.T) {
		t.Run("list all activities", func(t *testing.T) {
			result, err := repo.GetByUserID(ctx, userID)
			assert.NoError(t, err)
			assert.Equal(t, 5, len(result))
			seen := map[uuid.UUID]bool{}
			for i, a := range result {
				seen[a.ID] = true
				assert.Equal(t, entity.ActivityStatusPending, a.Status)
				if i > 0 {
					assert.False(t, a.CreatedAt.After(result[i-1].CreatedAt))
				}
			}
			for _, a := range activities {
				assert.True(t, seen[a.ID])
			}
		})
		t.Run("list for unknown user", func(t *testing.T) {
			result, err := repo.GetByUserID(ctx, uuid.New())
			assert.NoError(t, err)
			assert.Equal(t, 0, len(result))
		})
	})
	t.Run("get activity by id", func(t *testing.T) {
		t.Run("success", func(t *testing.T) {
			a, err := repo.GetByID(ctx, activities[0].ID)
			assert.NoError(t, err)
			assert.Equal(t, activities[0].Title, a.Title)
			assert.Equal(t, activities[0].Points, a.Points)
			assert.Equal(t, userID, a.UserID)
			assert.Nil(t, a.GoalID)
		})
		t.Run("not found", func(t *testing.T) {
			_, err := repo.GetByID(ctx, uuid.New())
			assert.ErrorIs(t, err, errorvalues.ErrActivityNotFound)
		})
	})
	t.Run("create batch", func(t *testing.T) {
		batch := []*entity.Activity{
			{UserID: userID, Title: "batch_n0", Points: 1},
			{UserID: userID, Title: "batch_n1", Points: 2},
		}
		err := repo.CreateBatch(ctx, batch)
		assert.NoError(t, err)
		result, err := repo.GetByUserID(ctx, userID)
		assert.NoError(t, err)
		assert.Equal(t, 7, len(result))
	})
	t.Run("update activity", func(t *testing.T) {
		t.Run("success", func(t *testing.T) {
			a := entity.Activity{
				ID:     activities[0].ID,
				Title:  "ttt",
				Points: 42,
			}
			err := repo.Update(ctx, &a)
			assert.NoError(t, err)
			updated, err := repo.GetByID(ctx, a.ID)
			assert.NoError(t, err)
			assert.Equal(t, a.Title, updated.Title)
			assert.Equal(t, a.Points, updated.Points)
		})
		t.Run("not found", func(t *testing.T) {
			err := repo.Update(ctx, &entity.Activity{
				ID:    uuid.New(),
				Title: "ttt",
			})
			assert.ErrorIs(t, err, errorvalues.ErrActivityNotFound)
		})
	})
	t.Run("mark completed", func(t *testing.T) {
		completedAt := time.Now()
		err := repo.MarkCompleted(ctx, activities[0].ID, completedAt)
		assert.NoError(t, err)
		a, err := repo.GetByID(ctx, activities[0].ID)
		assert.NoError(t, err)
		assert.True(t, a.Completed)
		if assert.NotNil(t, a.CompletedAt) {
			assert.WithinDuration(t, completedAt, *a.CompletedAt, time.Second)
		}
	})
	t.Run("timer columns", func(t *testing.T) {
		startedAt := time.Now()
		err := repo.SetStarted(ctx, activities[1].ID, startedAt)
		assert.NoError(t, err)
		a, err := repo.GetByID(ctx, activities[1].ID)
		assert.NoError(t, err)
		assert.Equal(t, entity.ActivityStatusActive, a.Status)
		if assert.NotNil(t, a.StartTime) {
			assert.WithinDuration(t, startedAt, *a.StartTime, time.Second)
		}
		err = repo.SetFinished(ctx, activities[1].ID, startedAt.Add(90*time.Second), 90)
		assert.NoError(t, err)
		a, err = repo.GetByID(ctx, activities[1].ID)
		assert.NoError(t, err)
		assert.Equal(t, entity.ActivityStatusDone, a.Status)
		assert.Equal(t, 90, a.Duration)
		assert.NotNil(t, a.EndTime)
	})
	t.Run("expire batch", func(t *testing.T) {
		t.Run("expires every given row", func(t *testing.T) {
			ids := []uuid.UUID{activities[2].ID, activities[3].ID}
			err := repo.ExpireBatch(ctx, ids)
			assert.NoError(t, err)
			for _, id := range ids {
				a, err := repo.GetByID(ctx, id)
				assert.NoError(t, err)
				assert.Equal(t, entity.ActivityStatusExpired, a.Status)
			}
		})
		t.Run("leaves other rows alone", func(t *testing.T) {
			a, err := repo.GetByID(ctx, activities[4].ID)
			assert.NoError(t, err)
			assert.Equal(t, entity.ActivityStatusPending, a.Status)
		})
	})
	t.Run("delete", func(t *testing.T) {
		t.Run("success", func(t *testing.T) {
			err := repo.Delete(ctx, activities[4].ID)
			assert.NoError(t, err)
			_, err = repo.GetByID(ctx, activities[4].ID)
			assert.ErrorIs(t, err, errorvalues.ErrActivityNotFound)
		})
		t.Run("not found", func(t *testing.T) {
			err := repo.Delete(ctx, uuid.New())
			assert.ErrorIs(t, err, errorvalues.ErrActivityNotFound)
		})
	})
}

func setupTestDB(t *testing.T) *testPGConfig {
	container, err := postgres.Run(context.Background(), "postgres:17",
		postgres.WithUsername("test_user"),
		postgres.WithDatabase("progress"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatal("error running test container: " + err.Error())
	}
	connStr, err := container.ConnectionString(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	connStr += "sslmode=disable"
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}
	err = goose.Up(conn, "../../migrations")
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`INSERT INTO users (id, name, password_hash) VALUES ($1, $2, $3);`, userID, "test_name", "pass_hash")
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})
	return &testPGConfig{
		connStr: connStr,
	}
}

type testPGConfig struct {
	connStr string
}

func (cfg *testPGConfig) ConnString() string {
	return cfg.connStr
}
