package http

import (
	"github.com/gin-gonic/gin"
)

// Server wraps the routed gin engine serving the document pipeline API.
type Server struct {
	Engine *gin.Engine
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{Engine: NewRouter(cfg)}
}

func (s *Server) Run(addr string) error {
	return s.Engine.Run(addr)
}
