// Command scalectl validates, hashes and scores clinimetric scale definitions
// from local files.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clinimetric-scale-server/internal/logging"
)

var version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "scalectl",
		Short:         "Validate, hash and score clinimetric scale definitions",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log processing steps to stderr")

	logger := func() *logrus.Logger {
		level := "warn"
		if verbose {
			level = "debug"
		}
		return logging.NewLite(level, "text")
	}

	root.AddCommand(newValidateCmd(logger))
	root.AddCommand(newScoreCmd(logger))
	root.AddCommand(newHashCmd())
	root.AddCommand(newSetupCmd())
	return root
}

type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func exitError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}
