package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thesyncim/mediagraph"
)

var servicesCmd = &cobra.Command{
	Use:   "services [producer|filter|transition|consumer] [id]",
	Short: "List registered services or show one descriptor",
	Long: `Services lists the registered services, optionally of one kind. With a
kind and an identifier it prints that service's descriptor.

Examples:
  mediagraph services
  mediagraph services filter
  mediagraph services transition composite`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		factory, err := newFactory()
		if err != nil {
			return err
		}
		defer factory.Close()
		return ListServices(factory.Repository(), args, DefaultOutput)
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}

var listedKinds = []mediagraph.ServiceKind{
	mediagraph.KindProducer,
	mediagraph.KindFilter,
	mediagraph.KindTransition,
	mediagraph.KindConsumer,
}

// ListServices writes the services selected by args to out.
func ListServices(repo *mediagraph.Repository, args []string, out io.Writer) error {
	kinds := listedKinds
	if len(args) > 0 {
		kind, ok := mediagraph.ParseServiceKind(args[0])
		if !ok || !kind.Registrable() {
			return fmt.Errorf("unknown service kind %q", args[0])
		}
		kinds = []mediagraph.ServiceKind{kind}
	}

	if len(args) == 2 {
		desc, err := repo.Metadata(kinds[0], args[1])
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(desc)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tID\tTITLE\tPARAMETERS")
	for _, kind := range kinds {
		for _, id := range repo.IDs(kind) {
			desc, err := repo.Metadata(kind, id)
			if err != nil {
				return err
			}
			params := make([]string, len(desc.Parameters))
			for i, p := range desc.Parameters {
				params[i] = p.Identifier
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, id, desc.Title, strings.Join(params, ","))
		}
	}
	return w.Flush()
}
