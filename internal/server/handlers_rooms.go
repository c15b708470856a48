package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/larsssmoatsss/pictochatter/internal/engine"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	Name       string `json:"name" binding:"required,roomname"`
	MaxPlayers int    `json:"maxPlayers" binding:"omitempty,min=2,max=32"`
}

type historyQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

var createRoomMessages = bindMessages{
	"Name": {
		"required": "room name is required",
		"roomname": fmt.Sprintf("room name must be 1-%d characters", maxRoomNameLength),
	},
	"MaxPlayers": {
		"min": fmt.Sprintf("maxPlayers must be between %d and %d", minRoomPlayers, maxRoomPlayers),
		"max": fmt.Sprintf("maxPlayers must be between %d and %d", minRoomPlayers, maxRoomPlayers),
	},
}

func (s *Server) handleListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.engine.ListRooms()})
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if !bindJSON(c, &req, createRoomMessages, "room name is required") {
		return
	}
	name, err := validateRoomName(req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := s.engine.CreateRoom("", name, req.MaxPlayers, true)
	if err != nil && !errors.Is(err, engine.ErrPersistence) {
		s.writeEngineError(c, err)
		return
	}
	s.log.WithField("room_id", info.ID).Info("room created")
	c.JSON(http.StatusCreated, info)
}

func (s *Server) handleDeleteRoom(c *gin.Context) {
	roomID := c.Param("roomID")
	if err := s.engine.DeleteRoom(roomID); err != nil && !errors.Is(err, engine.ErrPersistence) {
		s.writeEngineError(c, err)
		return
	}
	s.log.WithField("room_id", roomID).Info("room deleted")
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRoomHistory(c *gin.Context) {
	var query historyQuery
	if !bindQuery(c, &query) {
		return
	}
	roomID := c.Param("roomID")
	history, err := s.engine.ChatHistory(roomID, query.Limit)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"roomId":  roomID,
		"history": history,
	})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
// Persistence failures are deliberately not mapped here: the in-memory
// operation succeeded, so handlers that tolerate them filter first.
func (s *Server) writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, engine.ErrRoomFull):
		c.JSON(http.StatusConflict, gin.H{"error": "room is full"})
	case errors.Is(err, engine.ErrPermission):
		c.JSON(http.StatusForbidden, gin.H{"error": "built-in rooms cannot be deleted"})
	case errors.Is(err, engine.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "room has active players"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
