package di

import (
	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/infrastructure/config"
	"github.com/noctisdark/mazenrecords-sst/interfaces/http/rest"
	"github.com/noctisdark/mazenrecords-sst/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   ports.RecordStore
	Metrics *observability.Collector
	Router  *rest.Router
}
