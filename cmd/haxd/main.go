// Command haxd boots a single HaxOS machine from a config file and
// serves the operator console on stdin/stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"hax/host"
	"hax/internal/buildinfo"
)

func main() {
	root := &cobra.Command{
		Use:           "haxd",
		Short:         "HaxOS teaching simulator host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var cfgPath string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Boot a machine and attach the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgPath)
		},
	}
	runCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "machine config file (yaml)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildinfo.Short())
		},
	}

	root.AddCommand(runCmd, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	var cfg host.Config
	var err error
	if cfgPath != "" {
		cfg, err = host.LoadConfig(cfgPath)
	} else {
		cfg, err = host.ParseConfig(nil)
	}
	if err != nil {
		return err
	}

	log, closeLog, err := host.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	m, err := host.NewMachine(cfg, log, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info("machine up", "addr", cfg.Addr, "version", buildinfo.Short())
	return m.Run(ctx, host.NewConsole(m, nil, os.Stdout))
}
