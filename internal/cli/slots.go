package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beesaferoot/rentals/internal/timeslot"
)

func SlotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots [start] [end]",
		Short: "Preview the viewing slots generated for a window",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slots, err := timeslot.Generate(args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range slots {
				fmt.Fprintf(out, "%s-%s\n", s.Start, s.End)
			}
			fmt.Fprintf(out, "%d slots\n", len(slots))
			if !timeslot.Covers(slots, args[0], args[1]) {
				return fmt.Errorf("generated slots do not cover %s-%s", args[0], args[1])
			}
			last := slots[len(slots)-1]
			s0, _ := timeslot.ParseClock(last.Start)
			s1, _ := timeslot.ParseClock(last.End)
			if s1-s0 < timeslot.Width {
				fmt.Fprintf(out, "Note: last slot %s-%s is %d minutes\n", last.Start, last.End, s1-s0)
			}
			return nil
		},
	}
}
