package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/progress/internal/error_values"
	"github.com/limbo/progress/internal/service"
	"github.com/limbo/progress/internal/tracker"
	"github.com/limbo/progress/pkg/entity"
	"github.com/limbo/progress/pkg/httputil"
)

type CreateActivityRequest struct {
	Title  string     `json:"title" validate:"required,min=1,max=200"`
	Points int        `json:"points" validate:"gte=0"`
	GoalID *uuid.UUID `json:"goal_id"`
}

type UpdateActivityRequest struct {
	Title  string     `json:"title" validate:"required,min=1,max=200"`
	Points int        `json:"points" validate:"gte=0"`
	GoalID *uuid.UUID `json:"goal_id"`
}

type GetActivitiesResponse struct {
	UserID     string             `json:"uid"`
	Bucket     string             `json:"bucket"`
	Activities []*entity.Activity `json:"activities"`
}

type ProgressResponse struct {
	Progress       int    `json:"progress"`
	HasActive      bool   `json:"has_active"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	CurrentID      string `json:"current_activity_id,omitempty"`
}

// containersFromRequest resolves the per-user state containers for the
// authenticated request, building them on first use.
func (s *Server) containersFromRequest(ctx context.Context, r *http.Request) (uuid.UUID, *tracker.Containers, error) {
	uid, err := GetUIDFromContext(r)
	if err != nil {
		return uuid.UUID{}, nil, errorvalues.ErrAuthRequired
	}
	c, err := s.registry.ForUser(ctx, uid)
	if err != nil {
		return uuid.UUID{}, nil, err
	}
	return uid, c, nil
}

func writeTrackerError(w http.ResponseWriter, logger *slog.Logger, action string, err error) {
	var remoteErr *errorvalues.RemoteError
	switch {
	case errors.Is(err, errorvalues.ErrAuthRequired):
		logger.Error(action + " error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
	case errors.Is(err, errorvalues.ErrActivityNotFound):
		logger.Error(action + " error: unexist activity")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "activity doesn't exist", nil)
	case errors.Is(err, errorvalues.ErrGoalNotFound):
		logger.Error(action + " error: unexist goal")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "goal doesn't exist", nil)
	case errors.Is(err, errorvalues.ErrWrongOwner):
		logger.Error(action + " error: record has different owner")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "record doesn't exist", nil)
	case errors.Is(err, errorvalues.ErrOwnerNotFound):
		logger.Error(action + " error: referenced record doesn't exist")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "referenced record doesn't exist", nil)
	case errors.As(err, &remoteErr):
		logger.Error(action+" error: remote store error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "remote store error", nil)
	default:
		logger.Error(action+" error: internal error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func (s *Server) GetActivities(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	uid, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "get activities", err)
		return
	}
	bucket := r.URL.Query().Get("bucket")
	var activities []*entity.Activity
	switch bucket {
	case "daily":
		activities = c.Activities.DailyActivities()
	case "weekly":
		activities = c.Activities.WeeklyActivities()
	case "date":
		day, parseErr := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), time.Local)
		if parseErr != nil {
			logger.Error("get activities error: invalid date param")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD", nil)
			return
		}
		activities = c.Activities.ActivitiesByDate(day)
	case "":
		bucket = "all"
		activities = c.Activities.Activities()
	default:
		logger.Error("get activities error: unknown bucket")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "unknown bucket, want daily, weekly or date", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, GetActivitiesResponse{
		UserID:     uid.String(),
		Bucket:     bucket,
		Activities: activities,
	})
	logger.Info("activities provided")
}

func (s *Server) CreateActivity(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req CreateActivityRequest
	defer r.Body.Close()
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("create activity error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := service.ValidateStruct(req); err != nil {
		logger.Error("create activity error: validation failed")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid activity fields", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "create activity", err)
		return
	}
	activity, err := c.Activities.Add(ctx, &entity.Activity{
		Title:  req.Title,
		Points: req.Points,
		GoalID: req.GoalID,
	})
	if err != nil {
		writeTrackerError(w, logger, "create activity", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, activity)
	logger.Info("activity created")
}

func (s *Server) CreateActivities(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var reqs []CreateActivityRequest
	defer r.Body.Close()
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&reqs); err != nil {
		logger.Error("create activities error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if len(reqs) == 0 {
		logger.Error("create activities error: empty batch")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "empty batch", nil)
		return
	}
	activities := make([]*entity.Activity, 0, len(reqs))
	for _, req := range reqs {
		if err := service.ValidateStruct(req); err != nil {
			logger.Error("create activities error: validation failed")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid activity fields", err)
			return
		}
		activities = append(activities, &entity.Activity{
			Title:  req.Title,
			Points: req.Points,
			GoalID: req.GoalID,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "create activities", err)
		return
	}
	if err := c.Activities.AddBatch(ctx, activities); err != nil {
		writeTrackerError(w, logger, "create activities", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, map[string]any{"inserted": len(activities)})
	logger.Info("activities batch created")
}

func (s *Server) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Error("update activity error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid activity id in path value", nil)
		return
	}
	var req UpdateActivityRequest
	defer r.Body.Close()
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("update activity error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := service.ValidateStruct(req); err != nil {
		logger.Error("update activity error: validation failed")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid activity fields", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "update activity", err)
		return
	}
	err = c.Activities.Update(ctx, &entity.Activity{
		ID:     id,
		Title:  req.Title,
		Points: req.Points,
		GoalID: req.GoalID,
	})
	if err != nil {
		writeTrackerError(w, logger, "update activity", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"activity_id": id.String()})
	logger.Info("activity updated")
}

func (s *Server) CompleteActivity(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Error("complete activity error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid activity id in path value", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "complete activity", err)
		return
	}
	if err := c.Activities.Complete(ctx, id); err != nil {
		writeTrackerError(w, logger, "complete activity", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"progress": c.Activities.Progress()})
	logger.Info("activity completed")
}

func (s *Server) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Error("activity deletion error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid activity id in path value", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "activity deletion", err)
		return
	}
	if err := c.Activities.Delete(ctx, id); err != nil {
		writeTrackerError(w, logger, "activity deletion", err)
		return
	}
	httputil.WriteNoContent(w)
	logger.Info("activity deleted")
}

func (s *Server) StartActivity(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Error("start activity error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid activity id in path value", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "start activity", err)
		return
	}
	if err := c.Activities.Start(ctx, id); err != nil {
		writeTrackerError(w, logger, "start activity", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"activity_id": id.String(), "status": entity.ActivityStatusActive})
	logger.Info("activity started")
}

func (s *Server) StopActivity(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Error("stop activity error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid activity id in path value", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "stop activity", err)
		return
	}
	if err := c.Activities.Stop(ctx, id); err != nil {
		writeTrackerError(w, logger, "stop activity", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"activity_id": id.String(), "status": entity.ActivityStatusDone})
	logger.Info("activity stopped")
}

func (s *Server) GetActivitiesForGoal(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	goalID, err := uuid.Parse(chi.URLParam(r, "goalID"))
	if err != nil {
		logger.Error("get goal activities error: invalid goal id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid goal id in path value", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	uid, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "get goal activities", err)
		return
	}
	activities, err := c.Activities.FetchActivitiesForGoal(ctx, goalID)
	if err != nil {
		writeTrackerError(w, logger, "get goal activities", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, GetActivitiesResponse{
		UserID:     uid.String(),
		Bucket:     "goal",
		Activities: activities,
	})
	logger.Info("goal activities provided")
}

func (s *Server) GetProgress(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "get progress", err)
		return
	}
	resp := ProgressResponse{
		Progress:       c.Activities.Progress(),
		HasActive:      c.Activities.HasActiveActivity(),
		ElapsedSeconds: c.Activities.ElapsedSeconds(),
	}
	if current := c.Activities.CurrentActivity(); current != nil {
		resp.CurrentID = current.ID.String()
	}
	httputil.WriteJSONResponse(w, http.StatusOK, resp)
	logger.Info("progress provided")
}
