package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/progress/internal/error_values"
	"github.com/limbo/progress/internal/service"
	"github.com/limbo/progress/pkg/entity"
	"github.com/limbo/progress/pkg/httputil"
)

type CreateGoalRequest struct {
	Title        string    `json:"title" validate:"required,min=1,max=200"`
	Description  string    `json:"desc" validate:"max=2000"`
	TargetPoints int       `json:"target_points" validate:"gte=0"`
	EndDate      time.Time `json:"end_date" validate:"required"`
}

type UpdateGoalRequest struct {
	Title        string    `json:"title" validate:"required,min=1,max=200"`
	Description  string    `json:"desc" validate:"max=2000"`
	TargetPoints int       `json:"target_points" validate:"gte=0"`
	Status       string    `json:"status"`
	EndDate      time.Time `json:"end_date" validate:"required"`
}

type GetGoalsResponse struct {
	UserID string         `json:"uid"`
	Goals  []*entity.Goal `json:"goals"`
}

func (s *Server) GetGoals(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	uid, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "get goals", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, GetGoalsResponse{
		UserID: uid.String(),
		Goals:  c.Goals.Goals(),
	})
	logger.Info("goals provided")
}

func (s *Server) CreateGoal(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	var req CreateGoalRequest
	defer r.Body.Close()
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("create goal error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := service.ValidateStruct(req); err != nil {
		logger.Error("create goal error: validation failed")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid goal fields", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "create goal", err)
		return
	}
	goal, err := c.Goals.Add(ctx, &entity.Goal{
		Title:        req.Title,
		Description:  req.Description,
		TargetPoints: req.TargetPoints,
		EndDate:      req.EndDate,
	})
	if err != nil {
		writeTrackerError(w, logger, "create goal", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, goal)
	logger.Info("goal created")
}

func (s *Server) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Error("update goal error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid goal id in path value", nil)
		return
	}
	var req UpdateGoalRequest
	defer r.Body.Close()
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("update goal error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := service.ValidateStruct(req); err != nil {
		logger.Error("update goal error: validation failed")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid goal fields", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "update goal", err)
		return
	}
	err = c.Goals.Update(ctx, &entity.Goal{
		ID:           id,
		Title:        req.Title,
		Description:  req.Description,
		TargetPoints: req.TargetPoints,
		Status:       req.Status,
		EndDate:      req.EndDate,
	})
	if err != nil {
		writeTrackerError(w, logger, "update goal", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"goal_id": id.String()})
	logger.Info("goal updated")
}

func (s *Server) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Error("goal deletion error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid goal id in path value", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "goal deletion", err)
		return
	}
	if err := c.Goals.Delete(ctx, id); err != nil {
		writeTrackerError(w, logger, "goal deletion", err)
		return
	}
	httputil.WriteNoContent(w)
	logger.Info("goal deleted")
}

func (s *Server) GetActiveGoal(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "get active goal", err)
		return
	}
	goal := c.Goals.CurrentActiveGoal()
	if goal == nil {
		logger.Info("no active goal")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "no active goal", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, goal)
	logger.Info("active goal provided")
}

func (s *Server) GetUpcomingGoal(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	_, c, err := s.containersFromRequest(ctx, r)
	if err != nil {
		writeTrackerError(w, logger, "get upcoming goal", err)
		return
	}
	goal, err := c.Goals.SoonestUpcoming(ctx)
	if err != nil {
		if errors.Is(err, errorvalues.ErrGoalNotFound) {
			logger.Info("no upcoming goal")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "no upcoming goal", nil)
			return
		}
		writeTrackerError(w, logger, "get upcoming goal", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, goal)
	logger.Info("upcoming goal provided")
}
