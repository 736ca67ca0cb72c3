// Package config loads the configuration of tablecore.
//
// A Config has one section per concern: Logging, Storage, Load, Export,
// Metrics and Tracing. Settings come from three layers, later layers winning:
//
//   - Default values
//   - A YAML file, with ${VAR_NAME} references replaced from the environment
//   - TABLECORE_* environment variables, named after the setting path
//
// # Usage
//
//	cfg, err := config.Load("tablecore.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := logger.Init(cfg.Logging); err != nil {
//		log.Fatal(err)
//	}
//
// Environment overrides use the upper-cased path with dots replaced by
// underscores:
//
//	TABLECORE_LOGGING_LEVEL=debug
//	TABLECORE_STORAGE_INTERN_POOL_SIZE=50000
//
// Save writes a Config back as YAML, which is how `tablecore config init`
// produces a starting file.
package config
