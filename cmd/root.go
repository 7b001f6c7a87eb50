package cmd

import (
	"os"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/testbench/inspection-agent/internal/config"
)

const envPrefix = "AGENT"

// NewRootCommand builds the agent CLI. Every flag can also be provided as
// an AGENT_ prefixed environment variable (dashes become underscores).
func NewRootCommand() *cobra.Command {
	cfg := config.NewConfigurationWithOptionsAndDefaults()

	root := &cobra.Command{
		Use:           "inspection-agent",
		Short:         "Production-line inspection orchestration agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			viper.AutomaticEnv()
			viper.SetEnvPrefix(envPrefix)
			viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
			cobraflags.PresetRequiredFlags(envPrefix, make(map[*pflag.Flag]bool), cmd)
			return nil
		},
	}

	root.AddCommand(NewRunCommand(cfg))
	root.AddCommand(NewStatusCommand())

	return root
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
