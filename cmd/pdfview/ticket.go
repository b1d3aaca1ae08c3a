package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfviewer/ticket"
)

var (
	ticketTTL  time.Duration
	ticketLink string
)

var ticketCmd = &cobra.Command{
	Use:   "ticket <url>",
	Short: "Mint an open ticket for a document",
	Long: `Mint a signed ticket that lets a browser open the document at <url>
through "pdfview serve". The secret is server.ticket_secret from the config
(or PDFVIEW_SERVER_TICKET_SECRET).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		ttl := cfg.Server.TicketTTL
		if ticketTTL > 0 {
			ttl = ticketTTL
		}
		signer, err := ticket.NewSigner([]byte(cfg.Server.TicketSecret), ttl)
		if err != nil {
			return err
		}
		tk, err := signer.Issue(args[0])
		if err != nil {
			return err
		}
		if ticketLink == "" {
			fmt.Fprintln(cmd.OutOrStdout(), tk)
			return nil
		}
		u, err := url.Parse(ticketLink)
		if err != nil {
			return fmt.Errorf("--link: %w", err)
		}
		q := u.Query()
		q.Set("ticket", tk)
		u.RawQuery = q.Encode()
		fmt.Fprintln(cmd.OutOrStdout(), u.String())
		return nil
	},
}

func init() {
	ticketCmd.Flags().DurationVar(&ticketTTL, "ttl", 0, "ticket lifetime (default: server.ticket_ttl)")
	ticketCmd.Flags().StringVar(&ticketLink, "link", "", "print a viewer link on this server URL instead of the bare ticket")
	rootCmd.AddCommand(ticketCmd)
}
