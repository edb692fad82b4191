package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/owldoor/zipradius/internal/proximity"
)

func newRadiusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "radius <code> <miles>",
		Short: "Print every postal code within a radius as JSON",
		Example: `  zipradius radius 90210 5
  zipradius radius 10001-1234 25 --config prod.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			miles, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("%w: radius %q is not a number", proximity.ErrInvalidInput, args[1])
			}

			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.svc.Query(cmd.Context(), proximity.Request{CenterCode: args[0], RadiusMiles: miles})
			if err != nil {
				return fmt.Errorf("%s: %w", proximity.ErrorCode(err), err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
}
