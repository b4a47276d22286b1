package flags

import (
	"time"

	"github.com/spf13/pflag"
)

var (
	Config = pflag.String("config", "", "Path to purger config file")

	Jobs = pflag.Int("jobs", 10, "Number of concurrent jobs to execute")

	Debug      = pflag.Bool("debug", false, "Print debug messages")
	Verbose    = pflag.Bool("verbose", true, "Print verbose messages")
	SoftErrors = pflag.Bool("soft-errors", false, "Print errors, but do not fail")

	Delete       = pflag.Bool("delete", false, "Delete data, instead of dry run")
	PollInterval = pflag.Duration("poll-interval", 10*time.Second, "Interval between task run status checks")

	Report = pflag.String("report", "", "Name of the CSV report written to the archive storage")
)
