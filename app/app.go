package app

import (
	"database/sql"

	"github.com/go-chi/oauth"

	"github.com/astracat/catform/analytics"
	"github.com/astracat/catform/config"
	"github.com/astracat/catform/ingest"
)

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config
	Ingestor   *ingest.Ingestor
	Aggregator *analytics.Aggregator
}
