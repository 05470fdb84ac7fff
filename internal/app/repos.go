package app

import (
	"gorm.io/gorm"

	pipelinerepo "github.com/yungbote/docflow-backend/internal/data/repos/pipeline"
	vectorsrepo "github.com/yungbote/docflow-backend/internal/data/repos/vectors"
	"github.com/yungbote/docflow-backend/internal/pkg/logger"
)

type Repos struct {
	DocumentState pipelinerepo.DocumentStateRepo
	Lease         pipelinerepo.LeaseRepo
	Transition    pipelinerepo.TransitionRepo
	Embedding     vectorsrepo.EmbeddingRepo
	Connection    vectorsrepo.ConnectionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		DocumentState: pipelinerepo.NewDocumentStateRepo(db, log),
		Lease:         pipelinerepo.NewLeaseRepo(db, log),
		Transition:    pipelinerepo.NewTransitionRepo(db, log),
		Embedding:     vectorsrepo.NewEmbeddingRepo(db, log),
		Connection:    vectorsrepo.NewConnectionRepo(db, log),
	}
}
