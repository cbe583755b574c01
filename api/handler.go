// Package api exposes the dispatch engine over HTTP: auto-dispatch,
// completion, live tracking via server-sent events, and the road network
// read endpoints.
package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/emsroute/ers/core/dispatch"
	"github.com/emsroute/ers/core/logger"
	"github.com/emsroute/ers/core/model"
	"github.com/emsroute/ers/core/sim"
	"github.com/emsroute/ers/core/store"
)

// Handler bundles the collaborators the HTTP endpoints need.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	simulator  *sim.Simulator
	store      store.Store
	log        logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(d *dispatch.Dispatcher, s *sim.Simulator, st store.Store, log logger.Logger) *Handler {
	return &Handler{dispatcher: d, simulator: s, store: st, log: log}
}

// NewRouter builds the gin engine with CORS and all routes registered.
// An empty origins list allows all origins.
func NewRouter(h *Handler, origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"*"}
	r.Use(cors.New(cfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.GET("/cities", h.listCities)
	r.GET("/route/cities/:id/hospitals", h.listHospitals)
	r.POST("/route/requests/auto", h.autoDispatch)
	r.GET("/route/requests/:id/stream", h.streamTracking)
	r.GET("/route/requests/:id/debug", h.debugRoute)
	r.POST("/ambulance/:id/complete", h.completeAssignment)
	return r
}

type autoDispatchRequest struct {
	CityID      model.CityID `json:"city_id" binding:"required"`
	Lat         *float64     `json:"lat" binding:"required"`
	Lon         *float64     `json:"lon" binding:"required"`
	CallerName  string       `json:"caller_name"`
	CallerPhone string       `json:"caller_phone"`
}

type autoDispatchResponse struct {
	Request    model.EmergencyRequest `json:"request"`
	Assignment model.Assignment       `json:"assignment"`
	Ambulance  model.Ambulance        `json:"ambulance"`
	ETAMinutes float64                `json:"eta_minutes"`
	DistanceKm float64                `json:"distance_km"`
	Route      []dispatch.RoutePoint  `json:"route"`
	Candidates []dispatch.Candidate   `json:"candidates"`
}

func (h *Handler) autoDispatch(c *gin.Context) {
	var body autoDispatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.dispatcher.AutoDispatch(c.Request.Context(), dispatch.DispatchInput{
		City:        body.CityID,
		Lat:         *body.Lat,
		Lon:         *body.Lon,
		CallerName:  body.CallerName,
		CallerPhone: body.CallerPhone,
	})
	if err != nil {
		h.dispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, autoDispatchResponse{
		Request:    res.Request,
		Assignment: res.Assignment,
		Ambulance:  res.Ambulance,
		ETAMinutes: res.ETAMinutes,
		DistanceKm: res.DistanceKm,
		Route:      res.Route,
		Candidates: res.Candidates,
	})
}

func (h *Handler) completeAssignment(c *gin.Context) {
	done, err := h.dispatcher.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active assignment for ambulance"})
			return
		}
		h.log.Errorf("complete assignment: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, done)
}

// streamTracking starts the movement simulation on first attach and
// streams its events as SSE until the vehicle arrives or the client
// disconnects. Disconnecting does not stop the simulation.
func (h *Handler) streamTracking(c *gin.Context) {
	requestID := c.Param("id")
	ch := h.simulator.Subscribe(requestID)
	defer h.simulator.Unsubscribe(requestID, ch)

	if _, err := h.simulator.Ensure(c.Request.Context(), requestID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found or already completed"})
			return
		}
		h.log.Errorf("start simulation %s: %v", requestID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start tracking"})
		return
	}

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("tracking", ev)
			return ev.Status != sim.StatusCompleted
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *Handler) debugRoute(c *gin.Context) {
	report, err := h.dispatcher.DebugRoute(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}
		h.log.Errorf("debug route: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) listCities(c *gin.Context) {
	cities, err := h.store.Cities(c.Request.Context())
	if err != nil {
		h.log.Errorf("list cities: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, cities)
}

func (h *Handler) listHospitals(c *gin.Context) {
	var uri struct {
		ID model.CityID `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	nodes, err := h.store.NodesByCity(c.Request.Context(), uri.ID)
	if err != nil {
		h.log.Errorf("list hospitals: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	hospitals := make([]model.Node, 0)
	for _, n := range nodes {
		if n.Kind == model.NodeHospital {
			hospitals = append(hospitals, n)
		}
	}
	c.JSON(http.StatusOK, hospitals)
}

// dispatchError maps the dispatch sentinels to a 4xx with a stable
// reason string; everything else is an opaque 500.
func (h *Handler) dispatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dispatch.ErrNoCityNodes):
		c.JSON(http.StatusNotFound, gin.H{"error": "city has no road network"})
	case errors.Is(err, dispatch.ErrNoHospitals):
		c.JSON(http.StatusNotFound, gin.H{"error": "city has no hospitals"})
	case errors.Is(err, dispatch.ErrNoHospitalReachable):
		c.JSON(http.StatusConflict, gin.H{"error": "no hospital reachable from caller location"})
	case errors.Is(err, dispatch.ErrNoAmbulance):
		c.JSON(http.StatusConflict, gin.H{"error": "no ambulance available"})
	default:
		h.log.Errorf("auto dispatch: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
