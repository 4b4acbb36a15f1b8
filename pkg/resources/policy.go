package resources

import (
	"time"
)

// ProbePolicy is shared by the pod probes and the load balancer health check.
type ProbePolicy struct {
	InitialDelay     time.Duration
	Period           time.Duration
	Timeout          time.Duration
	FailureThreshold int32
	SuccessThreshold int32
}

var Probes = ProbePolicy{
	InitialDelay:     120 * time.Second,
	Period:           10 * time.Second,
	Timeout:          5 * time.Second,
	FailureThreshold: 3,
	SuccessThreshold: 1,
}

const (
	ServicePort = 80
	HTTPSPort   = 443

	maxSurge       = 1
	maxUnavailable = 0

	// Endpoints must be deregistered from the load balancer before the container stops.
	preStopSleep           = 45 * time.Second
	terminationGracePeriod = 60 * time.Second

	containerName = "app"
	portName      = "http"
)

// Seconds truncates a duration to whole seconds.
func Seconds(d time.Duration) int32 {
	return int32(d / time.Second)
}
