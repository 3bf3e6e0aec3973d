package main

import "github.com/kelseyhightower/envconfig"

// config is populated from RELAY_-prefixed environment variables.
type config struct {
	// Addr is the HTTP listen address.
	Addr string `envconfig:"ADDR" default:":8080"`

	// HistoryPath is the bbolt database holding nickname history.
	HistoryPath string `envconfig:"HISTORY_PATH" default:"relay.db"`

	// SendBuffer is the outbound frame queue depth per session.
	SendBuffer int `envconfig:"SEND_BUFFER" default:"32"`

	// MessageRate is the sustained inbound frames-per-second allowed per
	// session; MessageBurst the burst on top. Zero disables limiting.
	MessageRate  float64 `envconfig:"MESSAGE_RATE" default:"10"`
	MessageBurst int     `envconfig:"MESSAGE_BURST" default:"20"`
}

func loadConfig() (config, error) {
	var cfg config
	err := envconfig.Process("RELAY", &cfg)
	return cfg, err
}
