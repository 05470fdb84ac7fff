package app

import (
	httpH "github.com/yungbote/docflow-backend/internal/http/handlers"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
	"github.com/yungbote/docflow-backend/internal/sse"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Document   *httpH.DocumentHandler
	Lease      *httpH.LeaseHandler
	Connection *httpH.ConnectionHandler
	Realtime   *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, cfg Config, repos Repos, svcs Services, hub *sse.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(),
		Document:   httpH.NewDocumentHandler(svcs.Document, svcs.Driver),
		Lease:      httpH.NewLeaseHandler(repos.Lease, cfg.LeaseTTL),
		Connection: httpH.NewConnectionHandler(svcs.Connection),
		Realtime:   httpH.NewRealtimeHandler(hub),
	}
}
