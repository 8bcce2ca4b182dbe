package config

import (
	"os"

	"go.uber.org/fx"
)

// Module provides the project configuration to the fx graph. A nil config is
// provided when tablekeeper.yaml does not exist, allowing commands that
// don't require one (init, help, version) to function.
var Module = fx.Module("config", fx.Provide(
	func() (*Config, error) {
		if _, err := os.Stat("tablekeeper.yaml"); os.IsNotExist(err) {
			return nil, nil
		}

		return LoadConfigFile("tablekeeper.yaml")
	},
))
