package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfviewer/extensions"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info <url>",
	Short: "Report on a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		doc, err := newLoader(cfg, logger, true).OpenURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer doc.Close()

		var inspector extensions.Inspector = &extensions.BasicInspector{}
		report, err := inspector.Inspect(cmd.Context(), doc)
		if err != nil {
			return fmt.Errorf("%s: %w", inspector.Name(), err)
		}
		if infoJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		return printReport(cmd.OutOrStdout(), report)
	},
}

func printReport(out io.Writer, r *extensions.InspectionReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", r.Version)
	fmt.Fprintf(w, "Size:\t%d bytes\n", r.FileSize)
	fmt.Fprintf(w, "Pages:\t%d\n", r.PageCount)
	fmt.Fprintf(w, "Fonts:\t%d\n", r.FontCount)
	fmt.Fprintf(w, "Images:\t%d\n", r.ImageCount)
	fmt.Fprintf(w, "Scripts:\t%d\n", r.ScriptCount)
	fmt.Fprintf(w, "Encrypted:\t%t\n", r.Encrypted)
	if r.Encrypted {
		fmt.Fprintf(w, "Print allowed:\t%t\n", r.Permissions.Print)
		fmt.Fprintf(w, "Copy allowed:\t%t\n", r.Permissions.Copy)
	}
	keys := make([]string, 0, len(r.Metadata))
	for k := range r.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%s\n", k, r.Metadata[k])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Page\tWidth\tHeight\tRotate\t")
	for _, p := range r.Pages {
		fmt.Fprintf(w, "%d\t%.1f\t%.1f\t%d\t\n", p.Number, p.Width, p.Height, p.Rotate)
	}
	return w.Flush()
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(infoCmd)
}
