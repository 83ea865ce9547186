package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dgallion1/docqa/internal/query"
)

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	result, err := s.engine.Query(r.Context(), req.Question)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuestion) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("query failed", "error", err)
		jsonError(w, "internal error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// retrievalTraceResponse mirrors the trace result plus a traversal alias
// kept for the frontend.
type retrievalTraceResponse struct {
	Steps                []query.TraceStep `json:"steps"`
	Latency              int64             `json:"latency"`
	Tokens               int               `json:"tokens"`
	Traversal            []query.TraceStep `json:"traversal"`
	NodesLoadedFromCache int64             `json:"nodes_loaded_from_cache"`
	NodesLoadedFromDisk  int64             `json:"nodes_loaded_from_disk"`
	NodesEvaluated       int               `json:"nodes_evaluated"`
	TreeDepth            int               `json:"tree_depth"`
}

func (s *Server) handleRetrievalTrace(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	result, err := s.engine.RetrievalTrace(question)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuestion) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("retrieval trace failed", "error", err)
		jsonError(w, "internal error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, retrievalTraceResponse{
		Steps:                result.Steps,
		Latency:              result.Latency,
		Tokens:               result.Tokens,
		Traversal:            result.Steps,
		NodesLoadedFromCache: result.NodesLoadedFromCache,
		NodesLoadedFromDisk:  result.NodesLoadedFromDisk,
		NodesEvaluated:       result.NodesEvaluated,
		TreeDepth:            result.TreeDepth,
	})
}

func (s *Server) handleIndexStructure(w http.ResponseWriter, r *http.Request) {
	payload := s.engine.IndexStructure()
	if payload == nil {
		jsonError(w, "index is not built yet", http.StatusInternalServerError)
		return
	}

	// Merge the payload with the current hierarchical root pointer so
	// the frontend can anchor tree views.
	out := map[string]any{
		"model_name":       payload.ModelName,
		"built_at_epoch":   payload.BuiltAtEpoch,
		"document_count":   payload.DocumentCount,
		"documents":        payload.Documents,
		"doc_fingerprints": payload.DocFingerprints,
	}
	if ptr := s.manager.Store().LoadRoot(); ptr != nil {
		out["hierarchical_root"] = ptr
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}
