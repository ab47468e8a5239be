package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/capyflow/aq/parse/toml"
)

const (
	AppName = "aq"

	// Application config keys. Each one is also a flag and an AQ_* variable.
	ConfigKeyLogLevel           = "log-level"
	ConfigKeyConfigFile         = "config"
	ConfigKeyMultilineStrings   = "multiline-strings"
	ConfigKeyMultilineThreshold = "multiline-threshold"
	ConfigKeyIndent             = "indent"
	ConfigKeyMaxWidth           = "max-width"

	DefaultLogLevel   = logrus.InfoLevel
	DefaultConfigName = ".aq"
)

// Config is the resolved command configuration: flags, AQ_* environment
// variables and the optional .aq.toml file, in that order of precedence.
type Config struct {
	v   *viper.Viper
	log *logrus.Entry
}

var cfg *Config

func initConfig(cmd *cobra.Command, _ []string) error {
	c, err := newConfig(cmd)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

func newConfig(cmd *cobra.Command) (*Config, error) {
	cfgFile, err := cmd.Flags().GetString(ConfigKeyConfigFile)
	if err != nil {
		cfgFile = ""
	}

	v := viper.New()
	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	c := &Config{
		v:   v,
		log: newLogger(v.GetString(ConfigKeyLogLevel), cmd.ErrOrStderr()),
	}
	if used := v.ConfigFileUsed(); used != "" {
		c.log.WithField("file", used).Debug("config file loaded")
	}
	return c, nil
}

func newLogger(level string, out io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.Level = parseLogLevel(level)
	entry := logrus.NewEntry(logger).WithField("app", AppName)

	// Encoder logging follows the CLI level on every run.
	toml.SetLogger(nil)
	if logger.Level >= logrus.DebugLevel {
		if zl, err := zap.NewDevelopment(); err == nil {
			toml.SetLogger(zl)
		} else {
			entry.WithError(err).Warn("encoder debug logging disabled")
		}
	}
	return entry
}

func parseLogLevel(level string) logrus.Level {
	if level == "" {
		return DefaultLogLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithError(err).Warnf("unknown log level %q, using %s", level, DefaultLogLevel)
		return DefaultLogLevel
	}
	return lvl
}

// EncoderOptions returns the encoder options selected by the configuration.
func (c *Config) EncoderOptions() toml.Options {
	return toml.Options{
		MultilineStrings:   c.v.GetBool(ConfigKeyMultilineStrings),
		MultilineThreshold: c.v.GetInt(ConfigKeyMultilineThreshold),
		Indent:             c.v.GetInt(ConfigKeyIndent),
		MaxWidth:           c.v.GetInt(ConfigKeyMaxWidth),
	}
}

func (c *Config) Logger() *logrus.Entry {
	return c.log
}
