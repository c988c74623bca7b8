package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"framegate/internal/datacache"
	"framegate/internal/document"
	"framegate/internal/registry"
	"framegate/internal/server"
)

type fetchResult struct {
	GameID     string `json:"gameId"`
	FullName   any    `json:"fullName"`
	Characters any    `json:"characters"`
	FrameData  int    `json:"frameDataEntries"`
}

func newFetchCommand(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "fetch <gameId>",
		Short: "Fetch one game's documents from upstream and summarize them",
		Example: `  framegate fetch sf6
  framegate fetch ggst --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			reg, err := registry.New(cfg.Games)
			if err != nil {
				return err
			}
			store, err := server.NewBuilder(cfg, logger).BuildStore(cmd.Context(), reg)
			if err != nil {
				return err
			}

			b, err := store.GameData(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetch %s: %w", args[0], err)
			}
			return printFetch(cmd.OutOrStdout(), b, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	return cmd
}

func printFetch(w io.Writer, b *datacache.Bundle, jsonOutput bool) error {
	res := fetchResult{
		GameID:     b.GameID,
		FullName:   b.Details.Get(document.Scalar("fullName")),
		Characters: b.Details.Get(document.List("characterList")),
		FrameData:  len(b.FrameData),
	}

	if jsonOutput {
		return json.NewEncoder(w).Encode(res)
	}

	fmt.Fprintf(w, "game:        %s\n", res.GameID)
	fmt.Fprintf(w, "name:        %v\n", res.FullName)
	fmt.Fprintf(w, "characters:  %v\n", res.Characters)
	fmt.Fprintf(w, "frame data:  %d entries\n", res.FrameData)
	return nil
}
