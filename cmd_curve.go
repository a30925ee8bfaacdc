package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bob-anderson-ok/kilonovagen/config"
	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
)

var (
	curvePlot   string
	curveConfig string
)

var curveCmd = &cobra.Command{
	Use:   "curve <m1> <m2> <lambda1> <lambda2>",
	Short: "Compute a single light curve and optionally plot all nine bands",
	Args:  cobra.ExactArgs(4),
	RunE:  runCurve,
}

func init() {
	curveCmd.Flags().StringVarP(&curvePlot, "plot", "p", "", "Write a two-panel PNG of the curve to this file")
	curveCmd.Flags().StringVarP(&curveConfig, "config", "c", "", "Parameter file supplying simulation constants and bands")
}

func runCurve(cmd *cobra.Command, args []string) error {
	var binary [4]float64
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return kerrors.Configuration("argument %d (%q) is not a number", i+1, arg)
		}
		binary[i] = v
	}

	cfg, err := config.Load(curveConfig)
	if err != nil {
		return err
	}
	gen, err := lightcurve.NewGenerator(cfg.Simulation, cfg.Bands)
	if err != nil {
		return err
	}
	curve, props, err := gen.Curve(binary[0], binary[1], binary[2], binary[3])
	if err != nil {
		return err
	}
	bands, err := lightcurve.SelectBands(curve, cfg.Bands)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ejecta mass %.4e Msun, velocity %.4f c, theta %.3f, phi %.3f\n",
		props.Mass, props.V, props.Theta, props.Phi)
	for _, b := range bands {
		peak := 0
		for i := range b.Mag {
			if b.Mag[i] < b.Mag[peak] {
				peak = i
			}
		}
		fmt.Fprintf(out, "  %s: peak %7.3f mag at %.2f days\n", b.Name, b.Mag[peak], curve.Time[peak])
	}

	if curvePlot != "" {
		title := fmt.Sprintf("m1: %.3g, m2: %.3g, l1: %.3g, l2: %.3g", binary[0], binary[1], binary[2], binary[3])
		if err := lightcurve.SaveCurvePlot(curvePlot, curve, title, 1200, 500); err != nil {
			return kerrors.IO(err, curvePlot)
		}
		fmt.Fprintf(out, "Saved light curve plot to %s\n", curvePlot)
	}
	return nil
}
