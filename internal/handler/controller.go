package handler

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"serp-go/internal/service"
	"serp-go/pkg/logger"
	"serp-go/pkg/serp"
	"serp-go/pkg/tracker"
)

type Controller struct {
	tracking service.TrackingService
	history  service.HistoryService
	config   ControllerConfig
	log      *logger.Logger
}

type ControllerConfig struct {
	// MaxKeywords caps a single track request
	MaxKeywords    int
	RequestTimeout time.Duration
}

func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxKeywords:    100,
		RequestTimeout: 5 * time.Minute,
	}
}

type StatusResponse struct {
	Status    string                `json:"status"`
	Timestamp string                `json:"timestamp"`
	Metrics   tracker.StatsSnapshot `json:"metrics"`
	Health    map[string]bool       `json:"health"`
}

type CompareRequest struct {
	From serp.Snapshot `json:"from"`
	To   serp.Snapshot `json:"to"`
}

type VolatilityRequest struct {
	Snapshots []serp.Snapshot `json:"snapshots" validate:"max=1000"`
}

type TrackRequest struct {
	Keywords []string `json:"keywords" validate:"required,min=1,dive,required,max=200"`
	Domain   string   `json:"domain" validate:"omitempty,max=253"`
}

type TrackResponse struct {
	Results []tracker.Result `json:"results"`
}

func NewController(tracking service.TrackingService, history service.HistoryService, config ControllerConfig) *Controller {
	if config.MaxKeywords <= 0 {
		config.MaxKeywords = DefaultControllerConfig().MaxKeywords
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultControllerConfig().RequestTimeout
	}

	return &Controller{
		tracking: tracking,
		history:  history,
		config:   config,
		log:      logger.GetLogger().WithField("component", "http_controller"),
	}
}

// Register mounts the API routes on app
func (ctrl *Controller) Register(app *fiber.App) {
	app.Get("/health", ctrl.Health)

	v1 := app.Group("/api/v1")
	v1.Post("/serp/compare", ctrl.Compare)
	v1.Post("/serp/volatility", ctrl.AnalyzeVolatility)
	v1.Get("/serp/volatility/:keyword", ctrl.KeywordVolatility)
	v1.Get("/serp/history/:keyword", ctrl.KeywordHistory)
	v1.Post("/track", ctrl.Track)
	v1.Get("/metrics", ctrl.Metrics)
}

// Health reports "degraded" while the DataForSEO circuit breaker is open
func (ctrl *Controller) Health(c *fiber.Ctx) error {
	stats := ctrl.tracking.Stats()
	upstream := stats.BreakerState != "open"

	status := "ok"
	if !upstream {
		status = "degraded"
	}

	return c.JSON(StatusResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Metrics:   stats,
		Health: map[string]bool{
			"tracking": ctrl.tracking.CanFetch(),
			"history":  ctrl.history != nil,
			"upstream": upstream,
		},
	})
}

func (ctrl *Controller) Compare(c *fiber.Ctx) error {
	var req CompareRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	return c.JSON(serp.Compare(req.From, req.To))
}

func (ctrl *Controller) AnalyzeVolatility(c *fiber.Ctx) error {
	var req VolatilityRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	return c.JSON(serp.AnalyzeVolatility(req.Snapshots))
}

func (ctrl *Controller) KeywordVolatility(c *fiber.Ctx) error {
	keyword, limit, err := keywordAndLimit(c)
	if err != nil {
		return err
	}

	report, err := ctrl.tracking.Volatility(c.UserContext(), keyword, limit)
	if err != nil {
		ctrl.log.WithError(err).WithField("keyword", keyword).Error("Volatility analysis failed")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load keyword history")
	}
	return c.JSON(report)
}

func (ctrl *Controller) KeywordHistory(c *fiber.Ctx) error {
	keyword, limit, err := keywordAndLimit(c)
	if err != nil {
		return err
	}

	index, err := ctrl.history.Index(c.UserContext(), keyword, limit)
	if err != nil {
		ctrl.log.WithError(err).WithField("keyword", keyword).Error("History lookup failed")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load keyword history")
	}
	return c.JSON(index)
}

func (ctrl *Controller) Track(c *fiber.Ctx) error {
	var req TrackRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	if len(req.Keywords) > ctrl.config.MaxKeywords {
		return fiber.NewError(fiber.StatusBadRequest, "too many keywords, at most "+strconv.Itoa(ctrl.config.MaxKeywords))
	}
	if !ctrl.tracking.CanFetch() {
		return fiber.NewError(fiber.StatusServiceUnavailable, "tracking disabled: DataForSEO credentials are not configured")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), ctrl.config.RequestTimeout)
	defer cancel()

	results, err := ctrl.tracking.TrackAll(ctx, req.Keywords, strings.TrimSpace(req.Domain))
	if err != nil {
		ctrl.log.WithError(err).WithField("keywords", len(req.Keywords)).Error("Tracking failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return fiber.NewError(fiber.StatusGatewayTimeout, "tracking timed out")
		}
		return fiber.NewError(fiber.StatusBadGateway, "tracking failed")
	}
	return c.JSON(TrackResponse{Results: results})
}

// Metrics derives CTR, traffic and visibility from query parameters. Missing
// parameters yield null metrics rather than an error.
func (ctrl *Controller) Metrics(c *fiber.Ctx) error {
	position, err := optionalInt(c, "position")
	if err != nil {
		return err
	}
	volume, err := optionalInt(c, "volume")
	if err != nil {
		return err
	}
	return c.JSON(serp.DeriveMetrics(position, volume))
}

func keywordAndLimit(c *fiber.Ctx) (string, int, error) {
	keyword, err := url.PathUnescape(c.Params("keyword"))
	if err != nil || strings.TrimSpace(keyword) == "" {
		return "", 0, fiber.NewError(fiber.StatusBadRequest, "keyword is required")
	}

	limit, err := optionalInt(c, "limit")
	if err != nil {
		return "", 0, err
	}
	return keyword, limit.OrElse(0), nil
}

func optionalInt(c *fiber.Ctx, name string) (serp.Option[int], error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return serp.None[int](), nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return serp.None[int](), fiber.NewError(fiber.StatusBadRequest, "invalid "+name+": "+raw)
	}
	return serp.Some(value), nil
}
