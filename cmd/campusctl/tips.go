package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HammerMeetNail/campussafe/internal/services"
)

func newTipsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tips",
		Short: "Work with the safety tips catalogue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a tips YAML file and summarise it by category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			svc, err := services.ParseTips(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			categories := svc.Categories()
			for _, category := range categories {
				fmt.Fprintf(out, "%-24s %d\n", category.Name, len(category.Tips))
			}
			fmt.Fprintf(out, "ok: %d tips in %d categories\n", svc.Count(), len(categories))
			return nil
		},
	})
	return cmd
}
