package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/plugin/ai/atlas"
)

type generateOptions struct {
	input    string
	format   string
	output   string
	seed     uint64
	clusters int
	version  int64
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a map offline from an item file",
		Example: `  atlas generate --input items.yaml --output map.json --seed 42
  cat items.json | atlas generate --input - --clusters 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := &profile.Profile{Mode: "dev"}
			p.FromEnv()

			state, err := runGenerate(cmd, p, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.output != "" && opts.output != "-" {
				f, err := os.Create(opts.output)
				if err != nil {
					return errors.Wrapf(err, "create %s", opts.output)
				}
				defer f.Close()
				out = f
			}
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(state)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", `item file (.json, .yaml or "-" for stdin)`)
	flags.StringVar(&opts.format, "format", "", "input format: json or yaml (default from extension)")
	flags.StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	flags.Uint64Var(&opts.seed, "seed", 0, "random seed; 0 seeds from entropy")
	flags.IntVar(&opts.clusters, "clusters", 0, "number of regions; 0 derives it from the topic count")
	flags.Int64Var(&opts.version, "map-version", 1, "version stamped on the map")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runGenerate(cmd *cobra.Command, p *profile.Profile, opts *generateOptions) (*atlas.MapState, error) {
	items, err := readItemsFile(opts.input, opts.format)
	if err != nil {
		return nil, err
	}

	generator, err := atlas.NewGenerator(p.MapOptions(), slog.Default())
	if err != nil {
		return nil, err
	}

	var rng *rand.Rand
	if opts.seed != 0 {
		rng = rand.New(rand.NewPCG(opts.seed, opts.seed))
	}
	clusters := opts.clusters
	if clusters == 0 {
		clusters = p.MapClusterCount
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if p.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.GenerationTimeout)
		defer cancel()
	}
	return generator.Generate(ctx, atlas.Request{
		Items:        items,
		ClusterCount: clusters,
		Rand:         rng,
		Version:      opts.version,
	})
}
