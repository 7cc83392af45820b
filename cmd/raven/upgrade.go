package main

import "github.com/spf13/cobra"

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Rebuild every installed package with a newer recipe version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		d, err := newDriver()
		if err != nil {
			fail(err)
			return
		}
		defer d.Store.Close()

		if err := d.Upgrade(cmd.Context()); err != nil {
			fail(err)
			return
		}
	},
}
