package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var server string
	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:   "featuredctl",
		Short: "Featured image sync CLI",
		Long: `Command line client for a featured-sync server.

Manages documents, media and image blocks, and drives the sync toggle
that keeps a block and the document's featured image in step.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("FEATURED_SYNC_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVarP(&server, "server", "s", defaultServer, "server base URL (env FEATURED_SYNC_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	rootCmd.AddCommand(NewPostTypeCommand())
	rootCmd.AddCommand(NewMediaCommand())
	rootCmd.AddCommand(NewDocumentCommand())
	rootCmd.AddCommand(NewBlockCommand())

	return rootCmd
}

// clientFromFlags creates a client from the persistent flags
func clientFromFlags(cmd *cobra.Command) *Client {
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return NewClient(server, timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
