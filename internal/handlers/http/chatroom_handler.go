package http

import (
	"errors"
	"net/http"

	"chatnet/internal/core/domain"
	"chatnet/internal/core/ports"
	"chatnet/internal/infrastructure/monitoring"
	"chatnet/pkg/validation"

	"github.com/gin-gonic/gin"
)

type ChatRoomHandler struct {
	roomService    ports.RoomService
	messageService ports.MessageService
	collector      *monitoring.PrometheusCollector
}

var _ ports.HTTPHandler = (*ChatRoomHandler)(nil)

func NewChatRoomHandler(
	roomService ports.RoomService,
	messageService ports.MessageService,
	collector *monitoring.PrometheusCollector,
) *ChatRoomHandler {
	return &ChatRoomHandler{
		roomService:    roomService,
		messageService: messageService,
		collector:      collector,
	}
}

func (h *ChatRoomHandler) SetupRoutes(group *gin.RouterGroup) {
	rooms := group.Group("/chatrooms")
	{
		rooms.GET("", h.ListRooms)
		rooms.POST("", h.CreateRoom)
		rooms.GET("/:id/messages", h.ListMessages)
		rooms.POST("/:id/messages", h.PostMessage)
	}
}

// roomResponse is the wire shape of a room in GET /chatrooms/: the room
// with its full message history attached.
type roomResponse struct {
	ID        domain.RoomID     `json:"id"`
	Users     []domain.UserID   `json:"users"`
	CreatedAt string            `json:"created_at"`
	Messages  []*domain.Message `json:"messages"`
}

func (h *ChatRoomHandler) ListRooms(c *gin.Context) {
	user := currentUser(c)

	rooms, err := h.roomService.ListRooms(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		messages, err := h.messageService.ListMessages(c.Request.Context(), room.ID, user)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if messages == nil {
			messages = []*domain.Message{}
		}
		response = append(response, roomResponse{
			ID:        room.ID,
			Users:     room.Members,
			CreatedAt: room.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000Z"),
			Messages:  messages,
		})
	}

	c.JSON(http.StatusOK, response)
}

func (h *ChatRoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Users []domain.UserID `json:"users"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one user must be specified"})
		return
	}

	if len(req.Users) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one user must be specified"})
		return
	}

	users := make([]string, 0, len(req.Users))
	for _, u := range req.Users {
		users = append(users, string(u))
	}
	if err := validation.ValidateMembers(users); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requester := currentUser(c)
	room, created, err := h.roomService.CreateOrFindRoom(c.Request.Context(), requester, req.Users)
	if err != nil {
		if errors.Is(err, domain.ErrNoMembers) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "At least one user must be specified"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if created {
		h.collector.RecordRoomCreated()
		c.JSON(http.StatusCreated, gin.H{
			"msg":         "Chat room created",
			"chatroom_id": room.ID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"msg":         "Chat room already exists",
		"chatroom_id": room.ID,
	})
}

func (h *ChatRoomHandler) ListMessages(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	user := currentUser(c)

	messages, err := h.messageService.ListMessages(c.Request.Context(), roomID, user)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if messages == nil {
		messages = []*domain.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

func (h *ChatRoomHandler) PostMessage(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	user := currentUser(c)

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message content cannot be empty"})
		return
	}

	msg, err := h.messageService.PostMessage(c.Request.Context(), roomID, user, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message content cannot be empty"})
		case errors.Is(err, domain.ErrInvalidContent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message content"})
		case errors.Is(err, domain.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat room not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.collector.RecordMessageStored()
	c.JSON(http.StatusCreated, msg)
}

// currentUser reads the authenticated identity set by AuthMiddleware.
func currentUser(c *gin.Context) domain.UserID {
	if val, exists := c.Get("user_id"); exists {
		if id, ok := val.(domain.UserID); ok {
			return id
		}
	}
	return ""
}
