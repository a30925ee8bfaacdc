// Example program demonstrating how to use the lightcurve package to:
// 1. Derive ejecta properties for a neutron-star binary
// 2. Integrate its nine-band kilonova light curve
// 3. Select the g, r, i, z training bands
// 4. Plot the curve
//
// Usage:
//
//	go run main.go [m1 m2 lambda1 lambda2]
//
// With no arguments the symmetric binary m1 = m2 = 1.35, lambda1 = lambda2 = 400 is used.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
)

func main() {
	fmt.Println("Kilonova Light Curve Example")
	fmt.Println("============================")

	binary := [4]float64{1.35, 1.35, 400, 400}
	if len(os.Args) == 5 {
		for i, arg := range os.Args[1:] {
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				log.Fatalf("Argument %d (%q) is not a number: %v", i+1, arg, err)
			}
			binary[i] = v
		}
	}

	gen, err := lightcurve.NewGenerator(lightcurve.DefaultSimulation(), lightcurve.DefaultBands)
	if err != nil {
		log.Fatalf("Failed to build generator: %v", err)
	}

	curve, props, err := gen.Curve(binary[0], binary[1], binary[2], binary[3])
	if err != nil {
		log.Fatalf("Failed to compute light curve: %v", err)
	}

	fmt.Printf("\nEjecta derived from the binary:")
	fmt.Printf("\n  Compactness: %.4f, %.4f", props.C1, props.C2)
	fmt.Printf("\n  Baryonic mass: %.4f, %.4f", props.Mb1, props.Mb2)
	fmt.Printf("\n  Ejecta mass: %.3e Msun", props.Mass)
	fmt.Printf("\n  Ejecta velocity: %.4f c (rho %.4f, z %.4f)", props.V, props.VRho, props.VZ)
	fmt.Printf("\n  Opening angles: theta %.3f, phi %.3f rad\n", props.Theta, props.Phi)

	fmt.Printf("\nGenerated %d time samples from %.2f to %.2f days\n",
		len(curve.Time), curve.Time[0], curve.Time[len(curve.Time)-1])

	bands, err := lightcurve.SelectBands(curve, lightcurve.DefaultBands)
	if err != nil {
		log.Fatalf("Band selection failed: %v", err)
	}

	fmt.Println("\nPeak magnitude per training band:")
	for _, b := range bands {
		peak := 0
		for i := range b.Mag {
			if b.Mag[i] < b.Mag[peak] {
				peak = i
			}
		}
		fmt.Printf("  %s: %7.3f mag at %.2f days\n", b.Name, b.Mag[peak], curve.Time[peak])
	}

	outputPlot := "kilonova_lightcurve.png"
	title := fmt.Sprintf("m1: %.3g, m2: %.3g, l1: %.3g, l2: %.3g", binary[0], binary[1], binary[2], binary[3])
	err = lightcurve.SaveCurvePlot(outputPlot, curve, title, 1200, 500)
	if err != nil {
		log.Printf("Could not save light curve plot: %v\n", err)
	} else {
		fmt.Printf("\nSaved light curve plot to %s\n", outputPlot)
	}

	fmt.Println("\nDone!")
}
