package config

import (
	"github.com/urfave/cli/v3"
)

// Flags are the overrides every binary accepts on top of the config file.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the YAML config file",
			Sources: cli.EnvVars("ENERGYWEB_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "db-driver",
			Usage:   "store driver (sqlite3 or memory)",
			Sources: cli.EnvVars("ENERGYWEB_DB_DRIVER"),
		},
		&cli.StringFlag{
			Name:    "db-path",
			Usage:   "SQLite database file",
			Sources: cli.EnvVars("ENERGYWEB_DB_PATH"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log level (debug, info, warn, error)",
			Sources: cli.EnvVars("ENERGYWEB_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "sensors-csv",
			Usage:   "provisioning CSV loaded at startup",
			Sources: cli.EnvVars("ENERGYWEB_SENSORS_CSV"),
		},
		&cli.StringFlag{
			Name:    "readings-csv",
			Usage:   "raw readings CSV loaded at startup",
			Sources: cli.EnvVars("ENERGYWEB_READINGS_CSV"),
		},
	}
}

// FromCommand loads the file named by --config and applies the flags that
// were set explicitly.
func FromCommand(cmd *cli.Command) (Config, error) {
	cfg, err := Load(cmd.String("config"))
	if err != nil {
		return cfg, err
	}
	if cmd.IsSet("db-driver") {
		cfg.Database.Driver = cmd.String("db-driver")
	}
	if cmd.IsSet("db-path") {
		cfg.Database.Path = cmd.String("db-path")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("sensors-csv") {
		cfg.Seed.SensorsCSV = cmd.String("sensors-csv")
	}
	if cmd.IsSet("readings-csv") {
		cfg.Seed.ReadingsCSV = cmd.String("readings-csv")
	}
	return cfg, cfg.Validate()
}
