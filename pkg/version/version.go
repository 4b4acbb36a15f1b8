package version

import (
	"strconv"
	"time"
)

// Set at build time with -ldflags "-X github.com/nais/promote/pkg/version.version=... -X ...buildTime=<unix>".
var (
	version   = "unknown"
	buildTime = "0"
)

func Version() string {
	return version
}

func BuildTime() (time.Time, error) {
	seconds, err := strconv.ParseInt(buildTime, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(seconds, 0), nil
}
