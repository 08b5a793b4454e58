package main

import "pii-redactor/internal/config"

// loadConfig builds the process Config from the file/env layers and then
// applies the CLI flags, which take precedence over both.
func loadConfig() *config.Config {
	path := "redactor-config.json"
	if flagConfigFile != "" {
		path = flagConfigFile
	}
	cfg := config.LoadFrom(path)

	if flagDB != "" {
		cfg.VaultPath = flagDB
		cfg.VaultBackend = "bbolt"
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if flagNoPresidio {
		cfg.UsePresidio = false
	}
	return cfg
}
