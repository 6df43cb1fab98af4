// Config loading for the g2meta CLI.
package main

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	configFileName = ".g2meta"
	configFileType = "yaml"

	cfgKeyDBDriver   = "db.driver"
	cfgKeyDBDSN      = "db.dsn"
	cfgKeyAlbumsDir  = "albums_dir"
	cfgKeySidecarExt = "sidecar_ext"
)

// loadConfig reads the configuration with Viper. A missing config file
// is not an error; the defaults and flags cover everything.
func loadConfig(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyDBDriver, "sqlite")
	v.SetDefault(cfgKeyAlbumsDir, "albums")
	v.SetDefault(cfgKeySidecarExt, ".md")

	v.SetEnvPrefix("G2META")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && configFile == "" {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}
