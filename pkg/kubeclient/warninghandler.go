package kubeclient

import (
	log "github.com/sirupsen/logrus"

	"github.com/nais/promote/pkg/metrics"
)

type warningHandler struct {
	cluster string
	logger  *log.Entry
}

func (w *warningHandler) HandleWarningHeader(_ int, _ string, message string) {
	// Invoked once per warning; a single request can yield several.
	w.logger.Warnf("apiserver: %s", message)
	metrics.APIWarning(w.cluster)
}
