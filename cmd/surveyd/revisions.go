package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"provsurvey/internal/survey"
)

// revisionsCmd lists the embedded survey revisions
var revisionsCmd = &cobra.Command{
	Use:   "revisions",
	Short: "List embedded survey revisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range survey.Revisions() {
			reg, err := survey.LoadRevision(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d questions\tfirst=%s\n", name, len(reg.OrderedIDs()), reg.First())
		}
		return nil
	},
}

// validateCmd checks a revision file without starting anything
var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a survey revision YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := survey.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: revision %s, %d questions, ok\n", args[0], reg.Revision(), len(reg.OrderedIDs()))
		return nil
	},
}

func init() {
	revisionsCmd.AddCommand(validateCmd)
}
