package service

import (
	"errors"
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/goccy/go-json"

	"github.com/iWorld-y/review_radar/app/dashboard/internal/usecase"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/trigger"
)

// AnalysisReply 分析结果
type AnalysisReply struct {
	AnalysisID       string                        `json:"analysis_id"`
	ProcessingStatus model.Status                  `json:"processing_status"`
	CurrentStep      string                        `json:"current_step"`
	Errors           []string                      `json:"errors"`
	TrendAnalysis    map[string][]model.TrendPoint `json:"trend_analysis"`
	ReportLocations  []string                      `json:"report_locations"`
}

type errorReply struct {
	Error string `json:"error"`
}

type AnalysisService struct {
	uc  *usecase.AnalysisUseCase
	log *log.Helper
}

func NewAnalysisService(uc *usecase.AnalysisUseCase, logger log.Logger) *AnalysisService {
	return &AnalysisService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// CreateAnalysis POST /api/v1/analyses
func (s *AnalysisService) CreateAnalysis(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		writeJSON(w, nethttp.StatusMethodNotAllowed, errorReply{Error: "method not allowed"})
		return
	}

	var req trigger.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, nethttp.StatusBadRequest, errorReply{Error: "invalid json: " + err.Error()})
		return
	}

	state, err := s.uc.Run(r.Context(), req)
	switch {
	case errors.Is(err, usecase.ErrBusy):
		writeJSON(w, nethttp.StatusConflict, errorReply{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, nethttp.StatusBadRequest, errorReply{Error: err.Error()})
		return
	}

	reply := AnalysisReply{
		AnalysisID:       state.AnalysisID,
		ProcessingStatus: state.ProcessingStatus,
		CurrentStep:      state.CurrentStep,
		Errors:           state.Errors,
		TrendAnalysis:    state.TrendAnalysis,
		ReportLocations:  state.ReportLocations,
	}
	if reply.Errors == nil {
		reply.Errors = []string{}
	}
	if reply.ReportLocations == nil {
		reply.ReportLocations = []string{}
	}
	writeJSON(w, nethttp.StatusOK, reply)
}

// CurrentAnalysis GET /api/v1/analyses/current
func (s *AnalysisService) CurrentAnalysis(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodGet {
		writeJSON(w, nethttp.StatusMethodNotAllowed, errorReply{Error: "method not allowed"})
		return
	}
	writeJSON(w, nethttp.StatusOK, s.uc.Current())
}

func writeJSON(w nethttp.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
