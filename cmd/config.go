package main

import "time"

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	AuthSecret string `env:"AUTH_SECRET,required=true"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`

	// SessionBufferSize bounds each session's outbound queue; a full queue
	// counts as a transport failure and the message takes the queued path.
	SessionBufferSize      int `env:"SESSION_BUFFER_SIZE,default=64"`
	PresenceBufferSize     int `env:"PRESENCE_BUFFER_SIZE,default=256"`

	PresenceGrace   time.Duration `env:"PRESENCE_GRACE,default=2s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ReportInterval  time.Duration `env:"REPORT_INTERVAL,default=30s"`
	StoreGCInterval time.Duration `env:"STORE_GC_INTERVAL,default=5m"`

	// GraphBaseURL points at the CRUD backend serving interest sets; empty
	// falls back to the in-memory graph fed by routed traffic.
	GraphBaseURL string        `env:"GRAPH_BASE_URL"`
	GraphTimeout time.Duration `env:"GRAPH_TIMEOUT,default=2s"`

	ModerationReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
}
