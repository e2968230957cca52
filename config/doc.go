// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and RUNBOX_-prefixed environment variables.
// It covers the server transport, the sandbox executor (backend, image,
// staging layout, timeout) and logging.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox image: %s\n", cfg.Sandbox.Image)
package config
