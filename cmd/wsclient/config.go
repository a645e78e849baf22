package main

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RelayURL string `envconfig:"RELAY_URL" default:"ws://localhost:8080/ws"`
	Token    string `envconfig:"TOKEN" required:"true"`
	// PEER is the user every typed line is sent to
	Peer string `envconfig:"PEER" required:"true"`
	// COLOURS enables colorized output for better readability
	Colours bool `envconfig:"COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("WSCLIENT", &cfg)
	return cfg, err
}
