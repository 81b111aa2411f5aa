package main

import (
	"github.com/spf13/cobra"

	"github.com/rawkode-academy/telemetry-sink/internal/seeder"
)

var seedProfile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Send synthetic telemetry to a running collector",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := seeder.LoadProfile(seedProfile)
		if err != nil {
			return err
		}
		return seeder.NewRunner(profile).Run()
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedProfile, "profile", "", "path to seed profile YAML")
}
