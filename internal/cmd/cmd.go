package cmd

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "adax-bridge",
		Short: "Bridge for ADAX heaters",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			charmer.SetJSONLogger(cmd, viper.GetBool("debug"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	if err := charmer.SetPersistentFlags(&RootCmd, viper.GetViper(), args); err != nil {
		panic("failed to set flags: " + err.Error())
	}

	RootCmd.AddCommand(&runCmd, &roomsCmd, &setCmd)
}

var args = charmer.Arguments{
	"debug":                   charmer.Argument{Default: false, Help: "Log debug messages"},
	"adax.url":                charmer.Argument{Default: "https://api-1.adax.no/client-api", Help: "ADAX API URL"},
	"adax.clientId":           charmer.Argument{Default: "", Help: "ADAX client ID"},
	"adax.secret":             charmer.Argument{Default: "", Help: "ADAX client secret"},
	"adax.maxPollingInterval": charmer.Argument{Default: 60, Help: "Maximum time between two refreshes (seconds)"},
	"adax.cacheTTL":           charmer.Argument{Default: time.Minute, Help: "How long discovered rooms are cached"},
	"adax.tick":               charmer.Argument{Default: 3 * time.Second, Help: "Reconciliation interval"},
	"api.addr":                charmer.Argument{Default: ":8080", Help: "Address of the REST API, /health and /metrics"},
	"mqtt.broker":             charmer.Argument{Default: "", Help: "MQTT broker URL (disabled if blank)"},
	"mqtt.username":           charmer.Argument{Default: "", Help: "MQTT username"},
	"mqtt.password":           charmer.Argument{Default: "", Help: "MQTT password"},
	"mqtt.prefix":             charmer.Argument{Default: "adax", Help: "MQTT topic prefix"},
	"slack.token":             charmer.Argument{Default: "", Help: "Slack bot token (disabled if blank)"},
	"slack.appToken":          charmer.Argument{Default: "", Help: "Slack app-level token"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/adax-bridge/")
		viper.AddConfigPath("$HOME/.adax-bridge")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("ADAX_BRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// all settings can be given as flags or environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFilename != "" {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}
