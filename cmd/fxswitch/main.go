// Command fxswitch runs a synthetic camera session and switches video
// effects on it from a scripted sequence of selections.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fxswitch",
		Short:         "Switch live video effects on a camera stream",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newEffectsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("fxswitch failed")
		os.Exit(1)
	}
}
