package logging

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

func textFormatter() log.Formatter {
	return &log.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	}
}

func jsonFormatter() log.Formatter {
	return &log.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	}
}

func Setup(level, format string) error {
	formatter, err := formatterFor(format)
	if err != nil {
		return err
	}
	log.SetFormatter(formatter)

	logLevel, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("while setting log level: %s", err)
	}
	log.SetLevel(logLevel)

	return nil
}

func formatterFor(format string) (log.Formatter, error) {
	switch format {
	case FormatJSON:
		return jsonFormatter(), nil
	case FormatText:
		return textFormatter(), nil
	default:
		return nil, fmt.Errorf("log format '%s' is not recognized", format)
	}
}
