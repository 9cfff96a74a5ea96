package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thesyncim/mediagraph"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the built-in profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ListProfiles(DefaultOutput)
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

// ListProfiles writes one line per built-in profile.
func ListProfiles(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tFPS\tDESCRIPTION")
	for _, name := range mediagraph.ProfileNames() {
		p, err := mediagraph.LoadProfile(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%dx%d\t%.3f\t%s\n", name, p.Width(), p.Height(), p.FPS(), p.Description())
	}
	return w.Flush()
}
