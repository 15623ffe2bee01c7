// Package config handles loading and validating the sensor node configuration.
//
// This package manages:
//   - Loading configuration from YAML or TOML files
//   - Overriding with environment variables
//   - Validation of required fields and line-protocol identifiers
//   - Default value handling
//
// Security Considerations:
//   - The delivery token should be set via SENSORNODE_DELIVERY_TOKEN
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Delivery.Bucket)
package config
