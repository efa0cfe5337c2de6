package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/feed"
	"catchup-feed/internal/handler/http/respond"
	"catchup-feed/internal/observability/metrics"
	"catchup-feed/internal/plugin"
)

type healthResponse struct {
	Status      string     `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	UptimeSecs  float64    `json:"uptime_seconds"`
	Scheduler   *schedInfo `json:"scheduler,omitempty"`
}

type schedInfo struct {
	Enabled  bool      `json:"enabled"`
	Running  bool      `json:"running"`
	NextRun  time.Time `json:"next_run"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Timestamp:  time.Now().UTC(),
		UptimeSecs: time.Since(s.startedAt).Seconds(),
	}
	if s.scheduler != nil {
		resp.Scheduler = &schedInfo{
			Enabled: true,
			Running: s.scheduler.IsRunning(),
			NextRun: s.scheduler.NextRun(),
		}
	}
	respond.JSON(w, http.StatusOK, resp)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 20
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			respond.Error(w, http.StatusBadRequest, errors.New("limit must be an integer between 1 and 100"))
			return
		}
		limit = n
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respond.Error(w, http.StatusBadRequest, errors.New("offset must be a non-negative integer"))
			return
		}
		offset = n
	}

	primaryOnly := false
	if v := q.Get("primary_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, errors.New("primary_only must be a boolean"))
			return
		}
		primaryOnly = b
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	items, err := s.selector.GenerateFeed(ctx, feed.Params{
		Limit:            limit,
		Offset:           offset,
		VendorFilter:     q.Get("vendor"),
		PrimaryOnly:      primaryOnly,
		SerendipitySlots: s.cfg.SerendipitySlots,
	})
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	item, err := s.topo.Get(ctx, id)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if item == nil {
		respond.Error(w, http.StatusNotFound, errors.New("article not found"))
		return
	}
	respond.JSON(w, http.StatusOK, item)
}

type actionRequest struct {
	Action string `json:"action"`
}

func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	action := entity.Action(req.Action)
	if err := s.selector.RecordAction(ctx, id, action); err != nil {
		var invalid *feed.InvalidActionError
		if errors.As(err, &invalid) {
			respond.Error(w, http.StatusBadRequest, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	metrics.RecordFeedAction(string(action))
	respond.JSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	info, err := s.topo.TopologyInfo(ctx)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	density, err := s.topo.ClusterDensity(ctx)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	metrics.UpdateTopologySnapshot(info.TotalArticles, len(info.ClusterCounts))
	respond.JSON(w, http.StatusOK, map[string]any{
		"total_articles":  info.TotalArticles,
		"cluster_counts":  info.ClusterCounts,
		"cluster_density": density,
	})
}

type sourceInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Vendor      string   `json:"vendor"`
	SourceType  string   `json:"source_type"`
	TechStack   []string `json:"supported_tech_stack"`
	Healthy     bool     `json:"healthy"`
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	all := s.registry.All()
	out := make([]sourceInfo, len(all))
	for i, p := range all {
		info := p.Info()
		out[i] = sourceInfo{
			Name:        info.Name,
			DisplayName: info.DisplayName,
			Vendor:      info.Vendor,
			SourceType:  string(info.SourceType),
			TechStack:   info.SupportedTechStack,
			Healthy:     p.HealthCheck(ctx),
		}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"sources": out})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	source := r.URL.Query().Get("source")
	if source == "" {
		summary, err := s.collector.CollectAll(ctx)
		if err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
		respond.JSON(w, http.StatusOK, summary)
		return
	}

	result, err := s.collector.CollectFrom(ctx, source)
	if err != nil {
		var unknown *plugin.UnknownSourceError
		if errors.As(err, &unknown) {
			respond.Error(w, http.StatusNotFound, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}
