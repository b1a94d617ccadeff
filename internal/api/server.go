package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/limbo/progress/internal/service"
	"github.com/limbo/progress/internal/tracker"
)

type Server struct {
	mx          *chi.Mux
	userService service.UserServiceI
	jwtService  JWTServiceI
	registry    *tracker.Registry
}

type ServicesList struct {
	UserService service.UserServiceI
	JwtService  JWTServiceI
	Registry    *tracker.Registry
}

func New(servicesOptions *ServicesList) *Server {
	s := &Server{
		mx:          chi.NewMux(),
		userService: servicesOptions.UserService,
		jwtService:  servicesOptions.JwtService,
		registry:    servicesOptions.Registry,
	}
	s.routes()
	return s
}

func (s *Server) Run(addr string) error {
	return http.ListenAndServe(addr, s.mx)
}

func (s *Server) routes() {
	s.mx.Use(s.RequestIDMiddleware, s.SettingUpLoggerMiddleware)
	s.mx.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.Register)
		r.Post("/auth/login", s.Login)
		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware, s.LoggerExtensionMiddleware)
			r.Get("/activities", s.GetActivities)
			r.Post("/activities", s.CreateActivity)
			r.Post("/activities/batch", s.CreateActivities)
			r.Patch("/activities/{id}", s.UpdateActivity)
			r.Delete("/activities/{id}", s.DeleteActivity)
			r.Post("/activities/{id}/complete", s.CompleteActivity)
			r.Post("/activities/{id}/start", s.StartActivity)
			r.Post("/activities/{id}/stop", s.StopActivity)
			r.Get("/activities/goal/{goalID}", s.GetActivitiesForGoal)
			r.Get("/progress", s.GetProgress)
			r.Get("/goals", s.GetGoals)
			r.Post("/goals", s.CreateGoal)
			r.Patch("/goals/{id}", s.UpdateGoal)
			r.Delete("/goals/{id}", s.DeleteGoal)
			r.Get("/goals/active", s.GetActiveGoal)
			r.Get("/goals/upcoming", s.GetUpcomingGoal)
		})
	})
}

func (s *Server) Handler() http.Handler {
	return s.mx
}
