package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
)

func openCmd() *cobra.Command {
	var print bool
	cmd := &cobra.Command{
		Use:   "open <note>",
		Short: "Open a note in Obsidian",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			abs, err := a.vault.FindNote(strings.Join(args, " "))
			if err != nil {
				return err
			}
			uri := "obsidian://open?path=" + url.QueryEscape(abs)
			if print {
				fmt.Println(uri)
				return nil
			}
			return open.Run(uri)
		},
	}
	cmd.Flags().BoolVar(&print, "print", false, "Print the obsidian:// URI instead of opening it")
	return cmd
}
