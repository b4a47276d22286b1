package main

import (
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"gitlab.com/gitlab-org/registry-tag-purger/concurrency"
	"gitlab.com/gitlab-org/registry-tag-purger/executor"
	"gitlab.com/gitlab-org/registry-tag-purger/flags"
)

var (
	jobsRunner = make(concurrency.JobsData)
	deletes    = &executor.Deletes{}
)

var rootCmd = &cobra.Command{
	Use:   "registry-tag-purger",
	Short: "Delete tags from a container registry together with the manifests only they reference",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if *flags.Debug {
			logrus.SetLevel(logrus.DebugLevel)
		} else if *flags.Verbose {
			logrus.SetLevel(logrus.InfoLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}

		logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

		jobsRunner.Run(*flags.Jobs)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func logErrorln(args ...interface{}) {
	if *flags.SoftErrors {
		logrus.Errorln(args...)
	} else {
		logrus.Fatalln(args...)
	}
}

func init() {
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.AddCommand(planCmd, deleteCmd, purgeCmd)
}

func main() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)

	go func() {
		for signal := range signals {
			deletes.Info()
			logrus.Fatalln("Signal received:", signal)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalln(err)
	}
}
