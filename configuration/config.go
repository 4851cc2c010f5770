package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	prefix = "RIGCTL"

	rigFile        = "RIG"
	profilePath    = "PROFILE"
	profileSheet   = "SHEET"
	profileRow     = "START_ROW"
	catchUp        = "CATCH_UP"
	logFile        = "LOG_FILE"
	tickPeriod     = "TICK_PERIOD"
	saveInterval   = "SAVE_INTERVAL"
	deviceTimeout  = "DEVICE_TIMEOUT"
	httpAddress    = "HTTP_ADDRESS"
	mqttBroker     = "MQTT_BROKER"
	mqttTopic      = "MQTT_TOPIC"
	mqttInterval   = "MQTT_INTERVAL"
	historyDB      = "HISTORY_DB"
	autostart      = "AUTOSTART"
	rigID          = "RIG_ID"
	retryInitial   = "LOG_RETRY_INITIAL_INTERVAL"
	retryMultipler = "LOG_RETRY_MULTIPLIER"
	retryMax       = "LOG_RETRY_MAX_INTERVAL"

	gracefulShutdown = "GRACEFUL_SHUTDOWN"

	defaultGracefulShutdown = 5 * time.Second
	defaultTickPeriod       = 50 * time.Millisecond
	defaultSaveInterval     = time.Second
	defaultDeviceTimeout    = 20 * time.Millisecond
	defaultSheet            = "Ablauf"
	defaultStartRow         = 4
	defaultHttpAddress      = ":8080"
	defaultMqttInterval     = time.Second
	defaultHistoryDB        = "rigctl.db"

	defaultRetryInitialInterval = time.Second
	defaultRetryMultiplier      = 2
	defaultRetryMaxInterval     = 30 * time.Second
)

type RetryConfig struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

var v *viper.Viper

func InitConfiguration(cmd *cobra.Command, configFile string) error {
	v = viper.New()

	v.SetEnvPrefix(prefix)
	v.AutomaticEnv() // read in environment variables that match

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)

		err := v.ReadInConfig()
		if err != nil {
			zap.S().Errorw("cannot read config file", "config file", configFile, "error", err)
			return fmt.Errorf("fail to read config file: %w", err)
		}
		zap.S().Infof("using config file: %v", v.ConfigFileUsed())
	}

	// Bind the current command's flags to viper
	bindFlags(cmd, v)

	return nil
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// replace - with _ to match yaml format
		flagName := f.Name
		if strings.Contains(f.Name, "-") {
			// Environment variables can't have dashes in them, so bind them to their equivalent
			// keys with underscores.
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			v.BindEnv(f.Name, fmt.Sprintf("%s_%s", prefix, envVarSuffix))
			flagName = strings.ReplaceAll(f.Name, "-", "_")
		}

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		// and the other way around.
		if !f.Changed && v.IsSet(flagName) {
			val := v.Get(flagName)
			cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val))
		} else if f.Changed && !v.IsSet(flagName) {
			v.Set(flagName, f.Value.String())
		}
	})
}

func GetGracefulShutdownDuration() time.Duration {
	return duration(gracefulShutdown, defaultGracefulShutdown)
}

// GetRigFile returns the path of the channel file.
func GetRigFile() string {
	return v.GetString(rigFile)
}

// GetProfilePath returns the profile source selected at startup.
func GetProfilePath() string {
	return v.GetString(profilePath)
}

func GetProfileSheet() string {
	if !v.IsSet(profileSheet) {
		return defaultSheet
	}
	return v.GetString(profileSheet)
}

func GetProfileStartRow() int {
	if !v.IsSet(profileRow) {
		return defaultStartRow
	}
	return v.GetInt(profileRow)
}

// GetCatchUpPolicy returns the segment catch-up policy name. Empty means single.
func GetCatchUpPolicy() string {
	return v.GetString(catchUp)
}

// GetLogFile returns the initial log destination.
func GetLogFile() string {
	return v.GetString(logFile)
}

func GetTickPeriod() time.Duration {
	return duration(tickPeriod, defaultTickPeriod)
}

func GetSaveInterval() time.Duration {
	return duration(saveInterval, defaultSaveInterval)
}

func GetDeviceTimeout() time.Duration {
	return duration(deviceTimeout, defaultDeviceTimeout)
}

func GetHttpAddress() string {
	if !v.IsSet(httpAddress) {
		return defaultHttpAddress
	}
	return v.GetString(httpAddress)
}

// GetMqttBroker returns the broker url. Empty disables telemetry.
func GetMqttBroker() string {
	return v.GetString(mqttBroker)
}

func GetMqttTopic() string {
	if !v.IsSet(mqttTopic) {
		return fmt.Sprintf("rigctl/%s/status", GetRigID())
	}
	return v.GetString(mqttTopic)
}

func GetMqttInterval() time.Duration {
	return duration(mqttInterval, defaultMqttInterval)
}

func GetHistoryDB() string {
	if !v.IsSet(historyDB) {
		return defaultHistoryDB
	}
	return v.GetString(historyDB)
}

// GetAutostart returns the cron spec which starts the selected profile. Empty disables it.
func GetAutostart() string {
	return v.GetString(autostart)
}

func GetRigID() string {
	if !v.IsSet(rigID) {
		id, err := machineid.ID()
		if err != nil {
			id = uuid.New().String()
		}

		// save id for the next call
		v.Set(rigID, id)

		return id
	}

	return v.GetString(rigID)
}

func GetLogRetryConfig() RetryConfig {
	config := RetryConfig{
		InitialInterval: duration(retryInitial, defaultRetryInitialInterval),
		Multiplier:      defaultRetryMultiplier,
		MaxInterval:     duration(retryMax, defaultRetryMaxInterval),
	}

	if v.IsSet(retryMultipler) {
		config.Multiplier = v.GetFloat64(retryMultipler)
	}

	return config
}

func duration(key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	d := v.GetDuration(key)
	if d <= 0 {
		zap.S().Warnw("invalid duration, using default", "key", key, "value", v.GetString(key), "default", def)
		return def
	}
	return d
}
