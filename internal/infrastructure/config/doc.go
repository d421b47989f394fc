// Package config loads and validates the station configuration.
//
// Configuration comes from one YAML file, with a small set of
// STATION_* environment variables layered on top for the values that
// should not live on disk: the ingest API key, the InfluxDB token, and
// the MQTT credentials. Load reads the file, applies the overrides,
// fills defaults, and validates; after that the Config is plain data
// with no runtime cost.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Station.Name)
//
// The config file itself should carry 0600 permissions, and the API key
// must be changed from any example value before the station faces a
// network.
package config
