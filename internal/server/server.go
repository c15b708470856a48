package server

import (
	"net/http"

	"github.com/larsssmoatsss/pictochatter/internal/config"
	"github.com/larsssmoatsss/pictochatter/internal/engine"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	engine   *engine.Engine
	cfg      config.Config
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func New(eng *engine.Engine, cfg config.Config, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	registerValidators()
	return &Server{
		engine: eng,
		cfg:    cfg,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.log))

	router.GET("/", s.handleHome)
	router.GET("/healthz", s.handleHealthz)
	router.Static("/static", "./static")

	api := router.Group("/api")
	{
		api.GET("/rooms", s.handleListRooms)
		api.POST("/rooms", s.handleCreateRoom)
		api.DELETE("/rooms/:roomID", s.handleDeleteRoom)
		api.GET("/rooms/:roomID/history", s.handleRoomHistory)
	}

	router.GET("/ws/rooms/:roomID", s.handleSocket)
	return router
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
