package config_test

import (
	"fmt"

	"github.com/ajitpratap0/nebula-convert/pkg/config"
)

// ExampleDefault shows the defaults used when no configuration file is given
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Addr: %s\n", cfg.Server.Addr)
	fmt.Printf("Archive: %s\n", cfg.Archive.Format)
	fmt.Printf("Input timeout: %s\n", cfg.Input.Timeout)

	// Output:
	// Addr: :8080
	// Archive: zip
	// Input timeout: 30s
}

// ExampleConfig_Validate shows how to validate a configuration before use
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Archive.Format = "rar"

	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
	}

	// Output:
	// config: invalid archive.format: validation: unsupported archive format: rar
}
