package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/filemq/pkg/filemq"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the filemq version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "filemq version %s\n", filemq.Version)
			return nil
		},
	}
}
