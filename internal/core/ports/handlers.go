package ports

import (
	"github.com/gin-gonic/gin"
)

type HTTPHandler interface {
	ListRooms(c *gin.Context)
	CreateRoom(c *gin.Context)
	ListMessages(c *gin.Context)
	PostMessage(c *gin.Context)
}
