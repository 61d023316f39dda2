// Package version хранит сведения о сборке storefront, которые проставляются через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/storefront/internal/version.version=v1.2.0 \
//	  -X github.com/vladislavdragonenkov/storefront/internal/version.commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки; её отдают /health и gRPC health.
func GetVersion() string { return version }

// Fields возвращает сведения о сборке для стартовой записи лога.
func Fields() log.Fields {
	return log.Fields{
		"version": version,
		"commit":  commit,
		"built":   date,
	}
}

func String() string {
	return fmt.Sprintf("storefront %s (commit %s, built %s)", version, commit, date)
}
