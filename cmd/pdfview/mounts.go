package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfviewer/markup"
	"github.com/wudi/pdfviewer/ticket"
)

var (
	mountsBase    string
	mountsTickets bool
)

var mountsCmd = &cobra.Command{
	Use:   "mounts <html>",
	Short: "List viewer mounts in host markup",
	Long: `List the elements of an HTML page that carry a data-pdf-url attribute.
Read the page from a file, or from stdin when the argument is "-". With
--tickets, mint an open ticket for every mount.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		mounts, err := markup.Find(in, mountsBase)
		if err != nil {
			return err
		}

		var signer *ticket.Signer
		if mountsTickets {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if signer, err = ticket.NewSigner([]byte(cfg.Server.TicketSecret), cfg.Server.TicketTTL); err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		header := "TAG\tID\tWIDTH\tURL"
		if signer != nil {
			header += "\tTICKET"
		}
		fmt.Fprintln(w, header)
		for _, m := range mounts {
			width := "-"
			if m.Width > 0 {
				width = fmt.Sprint(m.Width)
			}
			id := m.ID
			if id == "" {
				id = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s", m.Tag, id, width, m.URL)
			if signer != nil {
				tk, err := signer.Issue(m.URL)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "\t%s", tk)
			}
			fmt.Fprintln(w)
		}
		return w.Flush()
	},
}

func init() {
	mountsCmd.Flags().StringVar(&mountsBase, "base", "", "resolve relative document URLs against this page URL")
	mountsCmd.Flags().BoolVar(&mountsTickets, "tickets", false, "mint an open ticket per mount")
	rootCmd.AddCommand(mountsCmd)
}
