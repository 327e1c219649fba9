package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/spider-crawler/pageview/internal/fetcher"
	"github.com/spider-crawler/pageview/internal/urlutil"
)

func newFetchCommand(a *app) *cobra.Command {
	var (
		asJSON bool
		info   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a URL and print its decoded content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := a.newFetcher()
			defer f.Close()

			if info {
				if err := urlutil.Validate(args[0]); err != nil {
					return err
				}
				page, err := f.FetchPage(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printPageInfo(cmd.ErrOrStderr(), page)
				return writeResult(cmd.OutOrStdout(), &page.Result, asJSON)
			}

			result, err := a.newCommands(f).FetchURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), result, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print {content, url, status} as JSON")
	cmd.Flags().BoolVar(&info, "info", false, "print response metadata to stderr")
	return cmd
}

func writeResult(w io.Writer, result *fetcher.Result, asJSON bool) error {
	if asJSON {
		return writeJSON(w, result)
	}
	_, err := io.WriteString(w, result.Content)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPageInfo(w io.Writer, page *fetcher.Page) {
	fmt.Fprintf(w, "URL:          %s\n", page.RequestURL)
	if page.HasRedirects() {
		for _, hop := range page.RedirectChain {
			fmt.Fprintf(w, "  -> %d %s\n", hop.StatusCode, hop.Location)
		}
		fmt.Fprintf(w, "Final URL:    %s\n", page.URL)
	}
	fmt.Fprintf(w, "Status:       %d\n", page.Status)
	fmt.Fprintf(w, "Content-Type: %s\n", page.ContentType)
	fmt.Fprintf(w, "Charset:      %s (%s)\n", page.Charset, page.CharsetSource)
	if page.DecodeWarning {
		fmt.Fprintln(w, "Warning:      malformed bytes replaced with U+FFFD")
	}
	fmt.Fprintf(w, "Size:         %d bytes in %s\n", page.BodySize, page.ResponseTime.Round(time.Millisecond))
	if page.Truncated {
		fmt.Fprintln(w, "Warning:      body cut at the configured max_body_size")
	}
}
