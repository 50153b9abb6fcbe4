package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/amirfarid/guardpost/internal/domain"
	"github.com/amirfarid/guardpost/internal/present/rest/middleware"
	"github.com/amirfarid/guardpost/internal/present/rest/presenter"
	"github.com/amirfarid/guardpost/internal/service"
	"github.com/amirfarid/guardpost/internal/usecase"
)

type Handler struct {
	visitor  *usecase.VisitorUsecase
	delivery *usecase.DeliveryUsecase
	auth     *service.AuthService
	signal   *service.SignalService
}

func NewHandler(
	visitor *usecase.VisitorUsecase,
	delivery *usecase.DeliveryUsecase,
	auth *service.AuthService,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		visitor:  visitor,
		delivery: delivery,
		auth:     auth,
		signal:   signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, authmw *middleware.AuthMiddleware) {
	e.POST("/api/v1/auth/login", h.handleLogin)

	api := e.Group("/api/v1", authmw.IdentifyRequester)
	api.POST("/visitors", h.handleRegisterVisitor, middleware.RequireRole(domain.RoleResident))
	api.GET("/visitors", h.handleListVisitors)
	api.GET("/visitors/validate/:code", h.handleValidateVisitor, middleware.RequireRole(domain.RoleGuard))
	api.GET("/visitors/:id", h.handleGetVisitor)
	api.POST("/visitors/:id/check-in", h.handleCheckIn, middleware.RequireRole(domain.RoleGuard))
	api.POST("/visitors/:id/check-out", h.handleCheckOut, middleware.RequireRole(domain.RoleGuard))
	api.POST("/visitors/:id/cancel", h.handleCancelVisitor, middleware.RequireRole(domain.RoleResident, domain.RoleGuard))

	api.POST("/deliveries", h.handleRegisterDelivery, middleware.RequireRole(domain.RoleResident))
	api.GET("/deliveries", h.handleListDeliveries, middleware.RequireRole(domain.RoleGuard))
	api.GET("/deliveries/mine", h.handleListMyDeliveries, middleware.RequireRole(domain.RoleResident))
	api.GET("/deliveries/validate/:passcode", h.handleValidateDelivery, middleware.RequireRole(domain.RoleGuard))
	api.POST("/deliveries/:id/arrive", h.handleMarkArrived, middleware.RequireRole(domain.RoleGuard))
	api.POST("/deliveries/:id/collect", h.handleMarkCollected, middleware.RequireRole(domain.RoleGuard))
	api.POST("/deliveries/:id/cancel", h.handleCancelDelivery, middleware.RequireRole(domain.RoleResident))

	e.GET("/realtime", h.handleRealtime, authmw.IdentifyRequester, middleware.RequireRole(domain.RoleGuard))
}

type requester struct {
	ID          string
	Role        string
	CommunityID string
}

func requesterFrom(c echo.Context) requester {
	id, _ := c.Get(domain.RequesterIDCtxKey).(string)
	role, _ := c.Get(domain.RequesterRoleCtxKey).(string)
	community, _ := c.Get(domain.RequesterCommunityCtxKey).(string)
	return requester{ID: id, Role: role, CommunityID: community}
}

// --- auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Email == "" || req.Password == "" {
		return presenter.BadRequestMessage(c, "email and password are required")
	}

	signed, user, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return presenter.Unauthorized(c, "invalid credentials")
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, echo.Map{
		"token": signed,
		"user":  user,
	})
}

// --- visitors ---

type registerVisitorRequest struct {
	PropertyID        string     `json:"propertyID"`
	VisitorName       string     `json:"visitorName"`
	VisitorPhone      string     `json:"visitorPhone"`
	VisitorICPassport string     `json:"visitorICPassport"`
	VehiclePlate      string     `json:"vehiclePlate"`
	Purpose           string     `json:"purpose"`
	ExpectedArrival   time.Time  `json:"expectedArrival"`
	ExpectedDeparture *time.Time `json:"expectedDeparture,omitempty"`
}

func (h *Handler) handleRegisterVisitor(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	var body registerVisitorRequest
	if err := c.Bind(&body); err != nil {
		return presenter.BadRequest(c, err)
	}
	if body.PropertyID == "" || body.VisitorName == "" {
		return presenter.BadRequestMessage(c, "propertyID and visitorName are required")
	}
	if body.ExpectedArrival.IsZero() {
		return presenter.BadRequestMessage(c, "expectedArrival is required")
	}

	rec, err := h.visitor.Register(ctx, usecase.VisitorRegisterInput{
		CommunityID:       req.CommunityID,
		RegisteredBy:      req.ID,
		PropertyID:        body.PropertyID,
		VisitorName:       body.VisitorName,
		VisitorPhone:      body.VisitorPhone,
		VisitorICPass:     body.VisitorICPassport,
		VehiclePlate:      body.VehiclePlate,
		Purpose:           body.Purpose,
		ExpectedArrival:   body.ExpectedArrival,
		ExpectedDeparture: body.ExpectedDeparture,
	})
	if err != nil {
		return h.presentEntryError(c, err)
	}

	return presenter.Created(c, echo.Map{
		"visitor": rec,
		"qrCode":  rec.Code,
	})
}

func (h *Handler) handleListVisitors(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	filter, err := filterFromQuery(c, req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	records, total, err := h.visitor.List(ctx, filter)
	if err != nil {
		return h.presentEntryError(c, err)
	}

	return presenter.OK(c, echo.Map{
		"visitors":   records,
		"pagination": pagination(filter, total),
	})
}

func (h *Handler) handleGetVisitor(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	rec, err := h.visitor.Get(ctx, c.Param("id"), req.CommunityID, req.ID, req.Role)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presenter.OK(c, echo.Map{"visitor": rec})
}

func (h *Handler) handleValidateVisitor(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	decision, err := h.visitor.Validate(ctx, c.Param("code"), req.CommunityID)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presentDecision(c, decision, "visitor")
}

func (h *Handler) handleCheckIn(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	rec, err := h.visitor.CheckIn(ctx, c.Param("id"), req.CommunityID, req.ID)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presenter.OK(c, echo.Map{"visitor": rec})
}

func (h *Handler) handleCheckOut(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	rec, err := h.visitor.CheckOut(ctx, c.Param("id"), req.CommunityID, req.ID)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presenter.OK(c, echo.Map{"visitor": rec})
}

func (h *Handler) handleCancelVisitor(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	rec, err := h.visitor.Cancel(ctx, c.Param("id"), req.CommunityID, req.ID, req.Role)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presenter.OK(c, echo.Map{"visitor": rec})
}

// --- deliveries ---

type registerDeliveryRequest struct {
	DeliveryService  string    `json:"deliveryService"`
	VehiclePlate     string    `json:"vehiclePlate"`
	Notes            string    `json:"notes"`
	EstimatedArrival time.Time `json:"estimatedArrival"`
}

func (h *Handler) handleRegisterDelivery(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	var body registerDeliveryRequest
	if err := c.Bind(&body); err != nil {
		return presenter.BadRequest(c, err)
	}
	if body.DeliveryService == "" {
		return presenter.BadRequestMessage(c, "deliveryService is required")
	}
	if body.EstimatedArrival.IsZero() {
		return presenter.BadRequestMessage(c, "estimatedArrival is required")
	}

	rec, err := h.delivery.Register(ctx, usecase.DeliveryRegisterInput{
		CommunityID:      req.CommunityID,
		RegisteredBy:     req.ID,
		DeliveryService:  body.DeliveryService,
		VehiclePlate:     body.VehiclePlate,
		Notes:            body.Notes,
		EstimatedArrival: body.EstimatedArrival,
	})
	if err != nil {
		return h.presentEntryError(c, err)
	}

	return presenter.Created(c, echo.Map{
		"delivery": rec,
		"passcode": rec.Code,
	})
}

func (h *Handler) handleListDeliveries(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	filter, err := filterFromQuery(c, req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	filter.RegisteredBy = ""

	records, total, err := h.delivery.List(ctx, filter)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presenter.OK(c, echo.Map{
		"deliveries": records,
		"pagination": pagination(filter, total),
	})
}

func (h *Handler) handleListMyDeliveries(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	filter, err := filterFromQuery(c, req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	filter.RegisteredBy = req.ID

	records, total, err := h.delivery.List(ctx, filter)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presenter.OK(c, echo.Map{
		"deliveries": records,
		"pagination": pagination(filter, total),
	})
}

func (h *Handler) handleValidateDelivery(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	decision, err := h.delivery.Validate(ctx, c.Param("passcode"), req.CommunityID)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presentDecision(c, decision, "delivery")
}

func (h *Handler) handleMarkArrived(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	rec, err := h.delivery.MarkArrived(ctx, c.Param("id"), req.CommunityID, req.ID)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presenter.OK(c, echo.Map{"delivery": rec})
}

func (h *Handler) handleMarkCollected(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	rec, err := h.delivery.MarkCollected(ctx, c.Param("id"), req.CommunityID, req.ID)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presenter.OK(c, echo.Map{"delivery": rec})
}

func (h *Handler) handleCancelDelivery(c echo.Context) error {
	ctx := c.Request().Context()
	req := requesterFrom(c)

	rec, err := h.delivery.Cancel(ctx, c.Param("id"), req.CommunityID, req.ID)
	if err != nil {
		return h.presentEntryError(c, err)
	}
	return presenter.OK(c, echo.Map{"delivery": rec})
}

// --- realtime ---

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) handleRealtime(c echo.Context) error {
	req := requesterFrom(c)

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	output := make(chan domain.GateEvent)
	go h.signal.Listen(ctx, req.CommunityID, output)

	quit := make(chan struct{})

	go func() {
		for {
			// read loop only drains heartbeats and detects close
			if _, _, err := ws.ReadMessage(); err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.DebugContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				close(quit)
				return
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case event := <-output:
			if err := ws.WriteJSON(event); err != nil {
				slog.DebugContext(
					ctx, "Error writing event",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}

// --- helpers ---

func filterFromQuery(c echo.Context, req requester) (domain.EntryFilter, error) {
	filter := domain.EntryFilter{
		CommunityID: req.CommunityID,
		Status:      c.QueryParam("status"),
		PropertyID:  c.QueryParam("property_id"),
	}

	// residents only ever see their own registrations
	if req.Role == domain.RoleResident {
		filter.RegisteredBy = req.ID
	}

	if dateStr := c.QueryParam("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return domain.EntryFilter{}, err
		}
		filter.Date = &date
	}

	if pageStr := c.QueryParam("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return domain.EntryFilter{}, err
		}
		filter.Page = page
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return domain.EntryFilter{}, err
		}
		filter.Limit = limit
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	return filter, nil
}

func pagination(filter domain.EntryFilter, total int64) echo.Map {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return echo.Map{
		"total": total,
		"page":  page,
		"limit": limit,
		"pages": pages,
	}
}

func presentDecision(c echo.Context, decision domain.Decision, key string) error {
	payload := echo.Map{
		"decision":   decision.Code,
		"admissible": decision.Admissible(),
	}
	if decision.Record != nil && decision.Code != domain.DecisionNotFound {
		payload[key] = decision.Record
	}
	return presenter.OK(c, payload)
}

func (h *Handler) presentEntryError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return presenter.NotFound(c, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return presenter.Forbidden(c, "access denied")
	case errors.Is(err, domain.ErrAlreadyAdmitted):
		return presenter.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		return presenter.Conflict(c, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		return presenter.ServiceUnavailable(c, err)
	default:
		return presenter.BadRequest(c, err)
	}
}
