package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/evsync/internal/core"
	"github.com/JonMunkholm/evsync/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:     "sources",
	GroupID: "management",
	Short:   "List the configured sources and their ranges",
	Args:    cobra.NoArgs,
	Annotations: map[string]string{
		annotationOffline: "",
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		srcs, err := resolveSources(cfg.Sources)
		if err != nil {
			return err
		}
		return printSources(cmd.OutOrStdout(), srcs)
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func printSources(w io.Writer, srcs []source.Source) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tRANGE\tKIND")
	for _, src := range srcs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", src.ID, src.Range, sourceKind(src.ID))
	}
	return tw.Flush()
}

func sourceKind(id source.ID) string {
	if id == source.Primary {
		return "primary"
	}
	def, ok := core.Get(id)
	if !ok {
		return "unknown"
	}
	return def.Shape.String()
}
