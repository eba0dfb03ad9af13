package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dshills/listingsearch/pkg/types"
)

// seedFile is the JSON layout accepted by the seed command
type seedFile struct {
	Providers []types.Provider `json:"providers"`
	Listings  []types.Listing  `json:"listings"`
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.json>",
	Short: "Load providers and listings into the SQLite store",
	Long: `Reads {"providers": [...], "listings": [...]} from a JSON file and
upserts everything in one transaction. Listings without an id get a
generated one. Nothing is written if any record is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func readSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i := range seed.Listings {
		if seed.Listings[i].ID == "" {
			seed.Listings[i].ID = uuid.NewString()
		}
	}
	return &seed, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	seed, err := readSeedFile(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if a.store == nil {
		return errors.New("seed requires the sqlite storage driver")
	}

	if err := a.store.Import(cmd.Context(), seed.Providers, seed.Listings); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	cmd.Printf("Imported %d providers and %d listings\n", len(seed.Providers), len(seed.Listings))
	return nil
}
