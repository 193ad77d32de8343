package cmd

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var programsCmd = &cobra.Command{
	Use:     "programs",
	Aliases: []string{"program"},
	Short:   "List your programs",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("%v", err)
		}
		programs, err := sdk.ListPrograms(cmd.Context())
		exitIfSdkError(err)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tENTRYPOINT\tUPDATED")
		for _, p := range programs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Title, p.Entrypoint, p.UpdatedAt.Format(time.RFC3339))
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(programsCmd)
}
