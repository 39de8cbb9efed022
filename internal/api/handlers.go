package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/trial-workload/internal/apperr"
	"github.com/sells-group/trial-workload/internal/model"
)

// Health reports store reachability and cache counters.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.svc.Ping(r.Context()); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	WriteJSON(w, code, map[string]any{
		"status": status,
		"cache":  s.svc.CacheStats(),
	})
}

func (s *Server) RubricOptions(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, s.svc.RubricTables())
}

func (s *Server) ScoreRubric(w http.ResponseWriter, r *http.Request) {
	var sel model.RubricSelection
	if err := decodeJSON(r, &sel); err != nil {
		WriteError(w, r, err)
		return
	}
	res, err := s.svc.ScoreRubric(sel)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetStudyWorkloadSettings(r.Context(), chi.URLParam(r, "studyID"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

type settingsRequest struct {
	model.PartialProfile
	ApplyRubric bool `json:"applyRubric,omitempty"`
}

func (s *Server) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	apply := req.ApplyRubric
	if q := r.URL.Query().Get("applyRubric"); q != "" {
		v, err := strconv.ParseBool(q)
		if err != nil {
			WriteError(w, r, apperr.Invalid("api: settings", "applyRubric", "must be a boolean"))
			return
		}
		apply = v
	}

	p, err := s.svc.SetStudyWorkloadSettings(r.Context(), chi.URLParam(r, "studyID"), req.PartialProfile, apply)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	zap.L().Info("api: workload settings updated",
		zap.String("study_id", p.StudyID),
		zap.Bool("apply_rubric", apply),
		zap.String("subject", subjectOf(r)),
	)
	WriteJSON(w, http.StatusOK, p)
}

func (s *Server) CoordinatorMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.GetCoordinatorMetrics(r.Context(), chi.URLParam(r, "coordinatorID"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

type weeklyLogRequest struct {
	WeekStart model.Week `json:"weekStart"`
	model.EffortTotals
	Breakdown []model.StudyEffort `json:"breakdown,omitempty"`
}

func (s *Server) SubmitWeeklyLog(w http.ResponseWriter, r *http.Request) {
	var req weeklyLogRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	saved, err := s.svc.SubmitCoordinatorWeeklyLog(r.Context(), chi.URLParam(r, "coordinatorID"),
		req.WeekStart, req.EffortTotals, req.Breakdown)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	zap.L().Info("api: weekly log accepted",
		zap.String("coordinator_id", saved.CoordinatorID),
		zap.Stringer("week_start", saved.WeekStart),
		zap.String("subject", subjectOf(r)),
	)
	WriteJSON(w, http.StatusOK, saved)
}

func (s *Server) Portfolio(w http.ResponseWriter, r *http.Request) {
	include, err := boolQuery(r, "includeBreakdown")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	p, err := s.svc.GetPortfolioWorkload(r.Context(), include)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (s *Server) Trend(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.GetWorkloadTrend(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func boolQuery(r *http.Request, name string) (bool, error) {
	q := r.URL.Query().Get(name)
	if q == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(q)
	if err != nil {
		return false, apperr.Invalid("api: query", name, "must be a boolean")
	}
	return v, nil
}
