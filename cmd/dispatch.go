package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emsroute/ers/config"
	"github.com/emsroute/ers/core/dispatch"
	"github.com/emsroute/ers/core/model"
	"github.com/emsroute/ers/core/traffic"
	"github.com/emsroute/ers/infra/logger"
	"github.com/emsroute/ers/infra/store"
)

var (
	dispatchCity int64
	dispatchLat  float64
	dispatchLon  float64
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one auto-dispatch against the local seed dataset",
	RunE:  runDispatch,
}

func init() {
	dispatchCmd.Flags().Int64Var(&dispatchCity, "city", 0, "city id")
	dispatchCmd.Flags().Float64Var(&dispatchLat, "lat", 0, "caller latitude")
	dispatchCmd.Flags().Float64Var(&dispatchLon, "lon", 0, "caller longitude")
	_ = dispatchCmd.MarkFlagRequired("city")
	_ = dispatchCmd.MarkFlagRequired("lat")
	_ = dispatchCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.NewMemoryFromSeed(cfg.Data.SeedPath)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	logg := logger.New("dispatch-command")
	overlay := traffic.New(st, cfg.Routing.PeakHours)
	d, err := dispatch.NewDispatcher(st, overlay, logg, nil)
	if err != nil {
		return err
	}

	res, err := d.AutoDispatch(context.Background(), dispatch.DispatchInput{
		City: model.CityID(dispatchCity),
		Lat:  dispatchLat,
		Lon:  dispatchLon,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
