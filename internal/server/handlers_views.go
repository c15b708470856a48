package server

import (
	"github.com/larsssmoatsss/pictochatter/internal/web"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleHome(c *gin.Context) {
	templ.Handler(web.Home(s.roomSummaries())).ServeHTTP(c.Writer, c.Request)
}

func (s *Server) roomSummaries() []web.RoomSummary {
	rooms := s.engine.ListRooms()
	summaries := make([]web.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, web.RoomSummary{
			ID:         room.ID,
			Name:       room.Name,
			Players:    room.PlayerCount,
			MaxPlayers: room.MaxPlayers,
			IsCustom:   room.IsCustom,
		})
	}
	return summaries
}
