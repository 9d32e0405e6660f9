// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pulse/internal/audio"
	"pulse/internal/tui"
)

func newDevicesCommand() *cobra.Command {
	var interactive bool

	devicesCmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"list"},
		Short:   "List available audio devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			if !interactive {
				return audio.ListDevices(cmd.OutOrStdout())
			}

			sel, ok, err := tui.StartDeviceListUI()
			if err != nil || !ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected [%d] %s at %.0f Hz\n\n  %s --device %d --sample-rate %.0f\n",
				sel.Device.ID, sel.Device.Name, sel.SampleRate,
				cmd.Root().Name(), sel.Device.ID, sel.SampleRate)
			return nil
		},
	}
	devicesCmd.Flags().BoolVarP(&interactive, "tui", "t", false, "Pick a device interactively")
	return devicesCmd
}
