package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/domain"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/internal/service"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/log"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/middleware"
	"github.com/CS3219-AY2324S1-G04/peerprep-room-service/pkg/response"
)

// BasePath prefixes every room route.
const BasePath = "/room-service"

const codeAlreadyInRoom = "ALREADY_IN_ROOM"

// Route is one entry of the route table.
type Route struct {
	Method string
	Path   string
	// Auth routes require a resolved caller.
	Auth bool
	// DevOnly routes are registered outside production only.
	DevOnly bool
	Handle  gin.HandlerFunc
}

// Handler handles HTTP requests for room service.
type Handler struct {
	roomService    service.RoomService
	authMiddleware *middleware.AuthMiddleware
	production     bool
}

// NewHandler creates a new HTTP handler. Administrative routes are left
// out when production is true.
func NewHandler(roomService service.RoomService, authMiddleware *middleware.AuthMiddleware, production bool) *Handler {
	return &Handler{
		roomService:    roomService,
		authMiddleware: authMiddleware,
		production:     production,
	}
}

// Routes returns the route table.
func (h *Handler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "rooms", Handle: h.CreateRoom},
		{Method: http.MethodGet, Path: "rooms/:roomId", Handle: h.GetRoom},
		{Method: http.MethodGet, Path: "room", Auth: true, Handle: h.GetMyRoom},
		{Method: http.MethodPatch, Path: "room/keep-alive", Auth: true, Handle: h.KeepAlive},
		{Method: http.MethodDelete, Path: "room/user", Auth: true, Handle: h.LeaveRoom},
		{Method: http.MethodDelete, Path: "rooms/:roomId", DevOnly: true, Handle: h.DeleteRoom},
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	group := r.Group(BasePath)
	for _, route := range h.Routes() {
		if route.DevOnly && h.production {
			continue
		}
		handlers := []gin.HandlerFunc{route.Handle}
		if route.Auth {
			handlers = append([]gin.HandlerFunc{h.authMiddleware.RequireAuth()}, handlers...)
		}
		group.Handle(route.Method, route.Path, handlers...)
	}
}

// CreateRoom creates a new room.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields := bindingFields(err); fields != nil {
			response.ValidationError(c, fields)
			return
		}
		l.Warn().Err(err).Msg("failed to bind create room request")
		response.BadRequest(c, msgBodyNotObject)
		return
	}

	room, err := h.roomService.CreateRoom(ctx, &req)
	if err != nil {
		h.writeError(c, err, "failed to create room")
		return
	}

	response.Created(c, domain.CreateRoomResponse{RoomID: room.ID})
}

// GetRoom retrieves a room by ID.
func (h *Handler) GetRoom(c *gin.Context) {
	ctx := c.Request.Context()

	roomID := strings.TrimSpace(c.Param("roomId"))
	room, err := h.roomService.GetRoom(ctx, roomID)
	if err != nil {
		h.writeError(c, err, "failed to get room")
		return
	}

	response.Success(c, room.ToResponse())
}

// GetMyRoom retrieves the caller's room.
func (h *Handler) GetMyRoom(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	room, err := h.roomService.GetRoomByMember(ctx, userID)
	if err != nil {
		h.writeError(c, err, "failed to get room by member")
		return
	}

	response.Success(c, room.ToResponse())
}

// KeepAlive extends the caller's room.
func (h *Handler) KeepAlive(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	expireAt, err := h.roomService.KeepAlive(ctx, userID)
	if err != nil {
		h.writeError(c, err, "failed to extend room")
		return
	}

	response.Success(c, domain.KeepAliveResponse{ExpireAt: expireAt})
}

// LeaveRoom removes the caller from their room.
func (h *Handler) LeaveRoom(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	room, err := h.roomService.LeaveRoom(ctx, userID)
	if err != nil {
		h.writeError(c, err, "failed to leave room")
		return
	}

	response.Success(c, room.ToResponse())
}

// DeleteRoom deletes a room by ID. Registered outside production only.
func (h *Handler) DeleteRoom(c *gin.Context) {
	ctx := c.Request.Context()

	roomID := strings.TrimSpace(c.Param("roomId"))
	room, err := h.roomService.DeleteRoom(ctx, roomID)
	if err != nil {
		h.writeError(c, err, "failed to delete room")
		return
	}

	response.Success(c, room.ToResponse())
}

// writeError maps service errors to responses. Only unexpected faults are
// logged; their detail never reaches the client.
func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		response.ValidationError(c, vErr.Fields)
	case errors.Is(err, service.ErrAlreadyInRoom):
		response.ErrorWithFields(c, http.StatusBadRequest, codeAlreadyInRoom, "users already in a room",
			map[string]string{service.FieldUserIDs: "One or more users specified are already in a room."})
	case errors.Is(err, service.ErrRoomNotFound):
		response.NotFound(c, "room not found")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(msg)
		response.InternalError(c, "internal server error")
	}
}
