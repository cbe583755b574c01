package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emsroute/ers/config"
	"github.com/emsroute/ers/core/model"
	"github.com/emsroute/ers/infra/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed dataset commands",
}

var seedCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configured seed dataset",
	RunE:  runSeedCheck,
}

var seedLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List cities and hospitals in the seed dataset",
	RunE:  runSeedLs,
}

func init() {
	seedCmd.AddCommand(seedCheckCmd)
	seedCmd.AddCommand(seedLsCmd)
	rootCmd.AddCommand(seedCmd)
}

func loadSeededStore() (*store.Memory, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.NewMemoryFromSeed(cfg.Data.SeedPath)
}

func runSeedCheck(cmd *cobra.Command, args []string) error {
	st, err := loadSeededStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	cities, err := st.Cities(ctx)
	if err != nil {
		return err
	}
	for _, c := range cities {
		nodes, err := st.NodesByCity(ctx, c.ID)
		if err != nil {
			return err
		}
		hospitals := 0
		for _, n := range nodes {
			if n.Kind == model.NodeHospital {
				hospitals++
			}
		}
		if hospitals == 0 {
			return fmt.Errorf("city %q has no hospital node", c.Name)
		}
		edges, err := st.EdgesByCity(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d nodes, %d edges, %d hospitals\n", c.Name, len(nodes), len(edges), hospitals)
	}
	return nil
}

func runSeedLs(cmd *cobra.Command, args []string) error {
	st, err := loadSeededStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	cities, err := st.Cities(ctx)
	if err != nil {
		return err
	}
	for _, c := range cities {
		fmt.Printf("%d\t%s\n", c.ID, c.Name)
		nodes, err := st.NodesByCity(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if n.Kind == model.NodeHospital {
				fmt.Printf("\thospital %d\t%s\n", n.ID, n.Name)
			}
		}
	}
	return nil
}
