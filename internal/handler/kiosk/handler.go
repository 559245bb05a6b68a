package kiosk

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jwalitptl/kiosk-api/internal/handler"
	"github.com/jwalitptl/kiosk-api/internal/model"
	"github.com/jwalitptl/kiosk-api/internal/service/session"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
	"github.com/jwalitptl/kiosk-api/pkg/event"
)

// Kiosk is the check-in flow driven by the screens.
type Kiosk interface {
	Session() model.SessionState
	Location() model.Location
	SubmitCode(ctx context.Context, code string) (*model.PatientInfo, error)
	SearchPersonal(ctx context.Context, info model.PersonalInfo) (*model.PatientInfo, error)
	Confirm() error
	ReadHealthCard(ctx context.Context) (*model.HealthCard, error)
	Pay(ctx context.Context) (*model.PaymentReceipt, error)
	Navigate(route model.Route, params model.Params) error
	GoHome(reason string)
}

type Timer interface {
	State() model.TimerState
}

type VerifyRequest struct {
	Code string `json:"code" binding:"required,kioskcode"`
}

type NavigateRequest struct {
	Route  model.Route  `json:"route" binding:"required"`
	Params model.Params `json:"params"`
}

// ResolvedView is returned once an appointment is loaded.
type ResolvedView struct {
	Patient  *model.PatientInfo `json:"patient"`
	Session  model.SessionState `json:"session"`
	Location model.Location     `json:"location"`
}

type Handler struct {
	kiosk    Kiosk
	timer    Timer
	activity *event.Bus[event.Activity]
}

func NewHandler(kiosk Kiosk, timer Timer, activity *event.Bus[event.Activity]) *Handler {
	return &Handler{kiosk: kiosk, timer: timer, activity: activity}
}

// RegisterRoutes mounts the kiosk API. interaction runs on the session and flow groups.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, interaction ...gin.HandlerFunc) {
	sessions := r.Group("/session", interaction...)
	{
		sessions.GET("", h.GetSession)
		sessions.POST("/verify", h.Verify)
		sessions.POST("/search", h.Search)
		sessions.POST("/confirm", h.Confirm)
		sessions.POST("/reset", h.Reset)
		sessions.POST("/card", h.ReadCard)
		sessions.POST("/payment", h.Pay)
	}

	flow := r.Group("/flow", interaction...)
	{
		flow.GET("", h.GetLocation)
		flow.POST("/navigate", h.Navigate)
	}

	activity := r.Group("/activity")
	{
		activity.POST("", h.Tap)
		activity.POST("/foreground", h.Foreground)
	}

	r.GET("/timer", h.GetTimer)
}

func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.kiosk.Session()))
}

func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	patient, err := h.kiosk.SubmitCode(c.Request.Context(), req.Code)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.resolved(patient)))
}

func (h *Handler) Search(c *gin.Context) {
	var req model.PersonalInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	patient, err := h.kiosk.SearchPersonal(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.resolved(patient)))
}

func (h *Handler) resolved(patient *model.PatientInfo) ResolvedView {
	return ResolvedView{
		Patient:  patient,
		Session:  h.kiosk.Session(),
		Location: h.kiosk.Location(),
	}
}

func (h *Handler) Confirm(c *gin.Context) {
	if err := h.kiosk.Confirm(); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, handler.NewMessageResponse("confirmation queued").OnScreen(h.kiosk.Location()))
}

func (h *Handler) Reset(c *gin.Context) {
	h.kiosk.GoHome(session.ReasonManual)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.kiosk.Session()).OnScreen(h.kiosk.Location()))
}

func (h *Handler) ReadCard(c *gin.Context) {
	card, err := h.kiosk.ReadHealthCard(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(card).OnScreen(h.kiosk.Location()))
}

func (h *Handler) Pay(c *gin.Context) {
	receipt, err := h.kiosk.Pay(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(receipt).OnScreen(h.kiosk.Location()))
}

func (h *Handler) GetLocation(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.kiosk.Location()))
}

func (h *Handler) Navigate(c *gin.Context) {
	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	if !req.Route.Known() {
		_ = c.Error(errors.NotFound("route "+string(req.Route), nil))
		return
	}
	if err := h.kiosk.Navigate(req.Route, req.Params); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.kiosk.Location()))
}

func (h *Handler) Tap(c *gin.Context) {
	h.record(c, event.ActivityTap)
}

func (h *Handler) Foreground(c *gin.Context) {
	h.record(c, event.ActivityForeground)
}

func (h *Handler) record(c *gin.Context, kind event.ActivityKind) {
	h.activity.Publish(event.Activity{Kind: kind, At: time.Now().UTC()})
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.timer.State()))
}

func (h *Handler) GetTimer(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.timer.State()))
}
