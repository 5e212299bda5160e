package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"horse.fit/storyline/internal/clustering"
	"horse.fit/storyline/internal/db"
	"horse.fit/storyline/internal/ingest"
	"horse.fit/storyline/internal/news"
	"horse.fit/storyline/internal/timeline"
	payloadschema "horse.fit/storyline/schema"
)

const (
	defaultStoryLimit   = 100
	maxStoryLimit       = 1000
	defaultClusterLimit = 500
	maxClusterLimit     = 5000
	maxPostedItems      = 5000
)

type clusterRequest struct {
	Items       []json.RawMessage `json:"items"`
	Threshold   *float64          `json:"threshold,omitempty"`
	WindowHours int               `json:"window_hours,omitempty"`
}

type rejectedItem struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

func (s *Server) handleIngestItem(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not read request body"})
	}

	payload, err := payloadschema.ValidateNewsItemPayload(body)
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}

	result, err := s.ingester.IngestOne(c.Request().Context(), payload.ToRawItem(), payload.FeedMeta())
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", payload.ID).Msg("ingest item failed")
		if errors.Is(err, ingest.ErrStoreUnavailable) {
			return unavailable(c, "Story store unavailable")
		}
		return internalError(c, "Failed to ingest item")
	}

	if result.Outcome == ingest.OutcomeCreated {
		return successWithStatus(c, http.StatusCreated, result)
	}
	return success(c, result)
}

func (s *Server) handleClusterItems(c echo.Context) error {
	var req clusterRequest
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object with an items array"})
	}
	if len(req.Items) > maxPostedItems {
		return failValidation(c, map[string]string{"items": fmt.Sprintf("at most %d items per request", maxPostedItems)})
	}
	threshold, err := thresholdValue(req.Threshold)
	if err != nil {
		return failValidation(c, map[string]string{"threshold": err.Error()})
	}
	if req.WindowHours < 0 {
		return failValidation(c, map[string]string{"window_hours": "must be >= 0"})
	}

	items := make([]news.RawItem, 0, len(req.Items))
	rejected := make([]rejectedItem, 0)
	for i, raw := range req.Items {
		payload, err := payloadschema.ValidateNewsItemPayload(raw)
		if err != nil {
			rejected = append(rejected, rejectedItem{Index: i, Error: err.Error()})
			continue
		}
		item := payload.ToRawItem()
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		items = append(items, item)
	}

	now := s.now()
	if req.WindowHours > 0 {
		items = clustering.FilterRecent(items, now, time.Duration(req.WindowHours)*time.Hour)
	}
	clusters := s.builder.Build(items, threshold)

	return success(c, map[string]any{
		"clusters":  nonNilClusters(clusters),
		"rejected":  rejected,
		"threshold": effectiveThreshold(s.builder, threshold),
		"count":     len(clusters),
	})
}

func (s *Server) handleLiveClusters(c echo.Context) error {
	q, fieldErrors := parseLiveQuery(c)
	if fieldErrors != nil {
		return failValidation(c, fieldErrors)
	}
	clusters, err := s.liveClusters(c.Request().Context(), q)
	if err != nil {
		s.logger.Error().Err(err).Msg("build live clusters failed")
		return internalError(c, "Failed to load stories")
	}
	return success(c, map[string]any{
		"items":     nonNilClusters(clusters),
		"threshold": effectiveThreshold(s.builder, q.threshold),
		"count":     len(clusters),
	})
}

func (s *Server) handleTimeline(c echo.Context) error {
	q, fieldErrors := parseLiveQuery(c)
	if fieldErrors != nil {
		return failValidation(c, fieldErrors)
	}
	clusters, err := s.liveClusters(c.Request().Context(), q)
	if err != nil {
		s.logger.Error().Err(err).Msg("build timeline failed")
		return internalError(c, "Failed to load stories")
	}

	blocks := timeline.PartitionClusters(clusters, s.now(), s.opts.Location)
	if blocks == nil {
		blocks = []timeline.Block[clustering.Cluster]{}
	}
	return success(c, map[string]any{
		"blocks":    blocks,
		"threshold": effectiveThreshold(s.builder, q.threshold),
		"timezone":  s.opts.Location.String(),
	})
}

type liveQuery struct {
	limit     int
	threshold float64
}

func parseLiveQuery(c echo.Context) (liveQuery, map[string]string) {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultClusterLimit, 1, maxClusterLimit)
	if err != nil {
		return liveQuery{}, map[string]string{"limit": err.Error()}
	}
	threshold, err := parseThreshold(c.QueryParam("threshold"))
	if err != nil {
		return liveQuery{}, map[string]string{"threshold": err.Error()}
	}
	return liveQuery{limit: limit, threshold: threshold}, nil
}

// liveClusters clusters the store's working set inside the retention horizon.
func (s *Server) liveClusters(ctx context.Context, q liveQuery) ([]clustering.Cluster, error) {
	since := s.now().Add(-s.opts.Retention)
	stories, err := s.stories.ListActiveStories(ctx, since, q.limit)
	if err != nil {
		return nil, fmt.Errorf("list active stories: %w", err)
	}
	return s.builder.Build(clustering.ItemsFromStories(stories), q.threshold), nil
}

func (s *Server) handleStories(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultStoryLimit, 1, maxStoryLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	since, err := parseTimeFilter(c.QueryParam("since"))
	if err != nil {
		return failValidation(c, map[string]string{"since": "must be RFC3339 or YYYY-MM-DD"})
	}
	from := s.now().Add(-s.opts.Retention)
	if since != nil {
		from = *since
	}

	stories, err := s.stories.ListActiveStories(c.Request().Context(), from, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list stories failed")
		return internalError(c, "Failed to load stories")
	}
	if stories == nil {
		stories = []news.Story{}
	}

	return success(c, map[string]any{
		"items": stories,
		"count": len(stories),
		"since": from,
	})
}

func (s *Server) handleStoryDetail(c echo.Context) error {
	storyID := strings.TrimSpace(c.Param("story_id"))
	if storyID == "" {
		return failValidation(c, map[string]string{"story_id": "is required"})
	}

	story, err := s.stories.GetStory(c.Request().Context(), storyID)
	if err != nil {
		if db.IsNoRows(err) {
			return failNotFound(c, "Story not found")
		}
		s.logger.Error().Err(err).Str("story_id", storyID).Msg("query story detail failed")
		return internalError(c, "Failed to load story")
	}
	return success(c, story)
}

func nonNilClusters(clusters []clustering.Cluster) []clustering.Cluster {
	if clusters == nil {
		return []clustering.Cluster{}
	}
	return clusters
}

func effectiveThreshold(builder *clustering.Builder, override float64) float64 {
	if override > 0 {
		return override
	}
	return builder.Threshold()
}
