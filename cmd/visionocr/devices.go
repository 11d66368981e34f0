package main

import (
	"encoding/json"
	"fmt"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/spf13/cobra"
)

func devicesCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Show detected accelerators and how the configured device resolves",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := settings.LocalConfig()
			if err != nil {
				return err
			}
			caps := device.Probe()
			dev := device.Resolve(cfg.Device)
			precision := inference.PrecisionFor(cfg.Quantization, dev)

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(map[string]any{
					"capabilities": caps,
					"requested":    cfg.Device.String(),
					"resolved":     dev.String(),
					"quantization": cfg.Quantization.String(),
					"precision":    precision.String(),
				})
			}
			fmt.Fprintf(out, "%s %s\n", keyText("cuda"), yesNo(caps.CUDA))
			fmt.Fprintf(out, "%s  %s\n", keyText("mps"), yesNo(caps.MPS))
			fmt.Fprintf(out, "%s %s -> %s (%s, %s)\n", keyText("device"),
				cfg.Device, dev, cfg.Quantization, precision)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return okLabel("yes")
	}
	return dimText("no")
}
