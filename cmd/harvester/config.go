package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/kzharvest/harvester/pkg/fetch"
	"github.com/kzharvest/harvester/pkg/processing"
	"github.com/kzharvest/harvester/pkg/scanning"
)

type config struct {
	APIURL       string
	Pacing       time.Duration
	StallDelay   time.Duration
	MaxStalls    int
	ForwardCount uint64
	RequestRPS   float64
	HTTPTimeout  time.Duration
	SerialWriter bool

	// Optional answers to the interactive prompts.
	ForwardStart  string
	BackwardStart string
	Output        string

	LogLevel  string
	LogFormat string

	DatabaseURL  string
	ProjectID    string
	RecordsTopic string
	DLQTopicID   string
}

func loadConfig() config {
	return config{
		APIURL:       getEnv("HARVEST_API_URL", fetch.DefaultURLTemplate),
		Pacing:       getEnvDuration("HARVEST_PACING", scanning.DefaultPacing),
		StallDelay:   getEnvDuration("HARVEST_STALL_DELAY", processing.DefaultStallDelay),
		MaxStalls:    getEnvInt("HARVEST_MAX_STALLS", 0),
		ForwardCount: getEnvUint("HARVEST_FORWARD_COUNT", 0),
		RequestRPS:   getEnvFloat("HARVEST_REQUEST_RPS", 0),
		HTTPTimeout:  getEnvDuration("HARVEST_HTTP_TIMEOUT", 30*time.Second),
		SerialWriter: getEnvBool("HARVEST_SERIAL_WRITER", true),

		ForwardStart:  os.Getenv("HARVEST_FORWARD_START"),
		BackwardStart: os.Getenv("HARVEST_BACKWARD_START"),
		Output:        os.Getenv("HARVEST_OUTPUT"),

		LogLevel:  getEnv("HARVEST_LOG_LEVEL", "info"),
		LogFormat: getEnv("HARVEST_LOG_FORMAT", defaultLogFormat()),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		ProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		RecordsTopic: os.Getenv("PUBSUB_RECORDS_TOPIC"),
		DLQTopicID:   os.Getenv("PUBSUB_DLQ_TOPIC"),
	}
}

// defaultLogFormat is text for an interactive stderr and JSON otherwise.
func defaultLogFormat() string {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return "text"
	}
	return "json"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getEnvUint(key string, fallback uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.ParseUint(val, 10, 64)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil && f >= 0 {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
