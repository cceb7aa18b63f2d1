// HTTP API handlers. A single manual router dispatches on the URL so route
// precedence stays explicit.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/sportsched/schedgraph/pkg/graph"
	"github.com/sportsched/schedgraph/pkg/knowledge"
	"github.com/sportsched/schedgraph/pkg/metrics"
)

// registerHTTPHandlers sets up the routes for the REST API.
func (s *Server) registerHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/", s.router)
}

// router is the main manual router. It inspects the URL and delegates to the
// correct handler.
func (s *Server) router(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// --- Debug endpoints (pprof) ---
	if strings.HasPrefix(path, "/debug/pprof") {
		switch {
		case path == "/debug/pprof/":
			pprof.Index(w, r)
		case path == "/debug/pprof/cmdline":
			pprof.Cmdline(w, r)
		case path == "/debug/pprof/profile":
			pprof.Profile(w, r)
		case path == "/debug/pprof/symbol":
			pprof.Symbol(w, r)
		case path == "/debug/pprof/trace":
			pprof.Trace(w, r)
		default:
			s.writeHTTPError(w, http.StatusNotFound, "pprof endpoint not found")
		}
		return
	}

	// --- System endpoints ---
	if path == "/system/save" {
		s.handleSaveHTTP(w, r)
		return
	}
	if path == "/system/stats" {
		s.handleStats(w, r)
		return
	}

	// --- Graph endpoints ---
	switch path {
	case "/graph/nodes":
		s.handleNodeCreate(w, r)
		return
	case "/graph/nodes/search":
		s.handleNodeSearch(w, r)
		return
	case "/graph/nodes/range":
		s.handleNodeRange(w, r)
		return
	case "/graph/relationships":
		s.handleRelationshipCreate(w, r)
		return
	case "/graph/relationships/search":
		s.handleRelationshipSearch(w, r)
		return
	case "/graph/traverse":
		s.handleTraverse(w, r)
		return
	case "/graph/export":
		s.handleExport(w, r)
		return
	}

	// Parameterized URLs, like /graph/nodes/{id}
	if strings.HasPrefix(path, "/graph/nodes/") {
		// Most specific pattern first: /graph/nodes/{id}/relationships
		if rest, found := strings.CutSuffix(path, "/relationships"); found {
			nodeID := strings.TrimPrefix(rest, "/graph/nodes/")
			s.handleConnectedRelationships(w, r, nodeID)
			return
		}

		nodeID := strings.TrimPrefix(path, "/graph/nodes/")
		s.handleGetNode(w, r, nodeID)
		return
	}
	if strings.HasPrefix(path, "/graph/relationships/") {
		relID := strings.TrimPrefix(path, "/graph/relationships/")
		s.handleGetRelationship(w, r, relID)
		return
	}

	// --- Knowledge endpoints ---
	switch path {
	case "/knowledge/query":
		s.handleQuery(w, r)
		return
	case "/knowledge/analyze":
		s.handleAnalyze(w, r)
		return
	}

	if path == "/schedules/import" {
		s.handleScheduleImport(w, r)
		return
	}
	if strings.HasPrefix(path, "/schedules/") {
		if rest, found := strings.CutSuffix(path, "/conflicts"); found {
			s.handleConflicts(w, r, strings.TrimPrefix(rest, "/schedules/"))
			return
		}
		if rest, found := strings.CutSuffix(path, "/insights"); found {
			s.handleInsights(w, r, strings.TrimPrefix(rest, "/schedules/"))
			return
		}
	}

	s.writeHTTPError(w, http.StatusNotFound, "endpoint not found")
}

// --- Graph handlers ---

func (s *Server) handleNodeCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST on /graph/nodes")
		return
	}

	var req NodeCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Type == "" {
		s.writeHTTPError(w, http.StatusBadRequest, "node type must not be empty")
		return
	}

	node, err := s.repo.AddEntity(req.Type, req.Properties)
	if err != nil {
		if errors.Is(err, graph.ErrDuplicateID) {
			s.writeHTTPError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.refreshGraphGauges()
	s.writeHTTPResponse(w, http.StatusCreated, node)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request, nodeID string) {
	if r.Method != http.MethodGet {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use GET on /graph/nodes/{id}")
		return
	}

	node, ok := s.repo.Store().GetNode(nodeID)
	if !ok {
		s.writeHTTPError(w, http.StatusNotFound, "node not found")
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, node)
}

func (s *Server) handleNodeSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST on /graph/nodes/search")
		return
	}

	var req NodeSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	nodes := s.repo.Store().FindNodes(req.Type, req.Filters)
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{"nodes": nodes, "count": len(nodes)})
}

func (s *Server) handleNodeRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST on /graph/nodes/range")
		return
	}

	var req RangeSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Type == "" || req.Property == "" {
		s.writeHTTPError(w, http.StatusBadRequest, "type and property are required")
		return
	}

	nodes := s.repo.Store().FindNodesInRange(req.Type, req.Property, req.Min, req.Max)
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{"nodes": nodes, "count": len(nodes)})
}

func (s *Server) handleRelationshipCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST on /graph/relationships")
		return
	}

	var req RelationshipCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Type == "" {
		s.writeHTTPError(w, http.StatusBadRequest, "relationship type must not be empty")
		return
	}

	rel, err := s.repo.AddRelationship(req.SourceID, req.Type, req.TargetID, req.Properties)
	if err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			s.writeHTTPError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.refreshGraphGauges()
	s.writeHTTPResponse(w, http.StatusCreated, rel)
}

func (s *Server) handleGetRelationship(w http.ResponseWriter, r *http.Request, relID string) {
	if r.Method != http.MethodGet {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use GET on /graph/relationships/{id}")
		return
	}

	rel, ok := s.repo.Store().GetRelationship(relID)
	if !ok {
		s.writeHTTPError(w, http.StatusNotFound, "relationship not found")
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, rel)
}

func (s *Server) handleRelationshipSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST on /graph/relationships/search")
		return
	}

	var req RelationshipSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rels := s.repo.Store().FindRelationships(req.Type, req.Filters)
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{"relationships": rels, "count": len(rels)})
}

func (s *Server) handleConnectedRelationships(w http.ResponseWriter, r *http.Request, nodeID string) {
	if r.Method != http.MethodGet {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use GET on /graph/nodes/{id}/relationships")
		return
	}

	opts := graph.ConnectedOptions{
		Direction: graph.Direction(r.URL.Query().Get("direction")),
	}
	if relType := r.URL.Query().Get("type"); relType != "" {
		opts.Types = []string{relType}
	}

	conn, err := s.repo.Store().ConnectedRelationships(nodeID, opts)
	if err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			s.writeHTTPError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, conn)
}

func (s *Server) handleTraverse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST on /graph/traverse")
		return
	}

	var req TraverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	traversal, err := s.repo.Store().TraverseFrom(req.StartID, graph.TraverseOptions{
		MaxDepth:          req.MaxDepth,
		Direction:         req.Direction,
		RelationshipTypes: req.RelationshipTypes,
		NodeTypes:         req.NodeTypes,
		UniqueNodes:       req.UniqueNodes,
		IncludeStartNode:  req.IncludeStartNode,
		MaxNodes:          req.MaxNodes,
	})
	if err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			s.writeHTTPError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, traversal)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST on /graph/export")
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	exported, err := s.repo.Store().Export(graph.ExportOptions{
		NodeTypes:   req.NodeTypes,
		StartNodeID: req.StartNodeID,
	})
	if err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			s.writeHTTPError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, exported)
}

// --- Knowledge handlers ---

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST on /knowledge/query")
		return
	}

	var q knowledge.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	nodes, err := s.repo.Query(q)
	if err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{"entities": nodes, "count": len(nodes)})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST on /knowledge/analyze")
		return
	}

	var opts knowledge.AnalyzeOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	analysis, err := s.repo.AnalyzeRelationships(opts)
	if err != nil {
		if errors.Is(err, graph.ErrNodeNotFound) {
			s.writeHTTPError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, analysis)
}

func (s *Server) handleScheduleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST on /schedules/import")
		return
	}

	var imp knowledge.ScheduleImport
	if err := json.NewDecoder(r.Body).Decode(&imp); err != nil {
		s.writeHTTPError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := s.repo.ImportSchedule(imp)
	if err != nil {
		switch {
		case errors.Is(err, graph.ErrNodeNotFound):
			s.writeHTTPError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, graph.ErrDuplicateID):
			s.writeHTTPError(w, http.StatusConflict, err.Error())
		default:
			s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.refreshGraphGauges()
	s.writeHTTPResponse(w, http.StatusCreated, result)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request, scheduleID string) {
	if r.Method != http.MethodGet {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use GET on /schedules/{id}/conflicts")
		return
	}

	opts := knowledge.ConflictOptions{
		CheckVenues: r.URL.Query().Get("venues") != "false",
		CheckTeams:  r.URL.Query().Get("teams") != "false",
	}
	// The repository treats the all-false options as "run everything", so an
	// explicit disable of both checks must be rejected here.
	if !opts.CheckVenues && !opts.CheckTeams {
		s.writeHTTPError(w, http.StatusBadRequest, "venues=false and teams=false disables every check")
		return
	}

	conflicts, err := s.repo.FindConflicts(scheduleID, opts)
	if err != nil {
		if errors.Is(err, knowledge.ErrScheduleNotFound) {
			s.writeHTTPError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for _, c := range conflicts {
		metrics.ConflictsDetected.WithLabelValues(c.Type).Inc()
	}
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{"conflicts": conflicts, "count": len(conflicts)})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request, scheduleID string) {
	if r.Method != http.MethodGet {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use GET on /schedules/{id}/insights")
		return
	}

	opts := knowledge.InsightOptions{
		SkipConflicts: r.URL.Query().Get("conflicts") == "false",
	}

	insights, err := s.repo.GenerateInsights(scheduleID, opts)
	if err != nil {
		if errors.Is(err, knowledge.ErrScheduleNotFound) {
			s.writeHTTPError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeHTTPResponse(w, http.StatusOK, insights)
}

// --- System handlers ---

func (s *Server) handleSaveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use POST to trigger SAVE")
		return
	}

	start := time.Now()
	if err := s.repo.Store().SaveSnapshot(); err != nil {
		s.logger.Error("snapshot via HTTP failed", "error", err)
		s.writeHTTPError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.SnapshotDuration.Observe(time.Since(start).Seconds())

	s.writeHTTPResponse(w, http.StatusOK, map[string]string{"status": "OK", "message": "snapshot written"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeHTTPError(w, http.StatusMethodNotAllowed, "use GET on /system/stats")
		return
	}

	store := s.repo.Store()
	s.refreshGraphGauges()
	s.writeHTTPResponse(w, http.StatusOK, map[string]any{
		"nodes":         store.NodeCount(),
		"relationships": store.RelationshipCount(),
		"dirty":         store.Dirty(),
	})
}

// refreshGraphGauges pushes the current graph size into the Prometheus
// gauges. Called after every mutating operation.
func (s *Server) refreshGraphGauges() {
	store := s.repo.Store()
	metrics.NodesTotal.Set(float64(store.NodeCount()))
	metrics.RelationshipsTotal.Set(float64(store.RelationshipCount()))
}

// --- HTTP response helpers ---

func (s *Server) writeHTTPResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeHTTPError(w http.ResponseWriter, statusCode int, message string) {
	s.writeHTTPResponse(w, statusCode, map[string]string{"error": message})
}
