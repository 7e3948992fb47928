package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachecheck/geometry"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex-address> <s> <b>",
		Short: "Split an address into tag, set index and block offset.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := strconv.ParseUint(
				strings.TrimPrefix(strings.ToLower(args[0]), "0x"), 16, 64)
			if err != nil {
				return fmt.Errorf("address must be hexadecimal, got %q", args[0])
			}

			s, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("s must be an integer, got %q", args[1])
			}
			b, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("b must be an integer, got %q", args[2])
			}

			g := geometry.Geometry{S: s, E: 1, B: b}
			if err := g.Validate(); err != nil {
				return err
			}

			f := g.Decode(addr)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address 0x%x: tag=0x%x index=0x%x offset=0x%x\n",
				addr, f.Tag, f.Index, f.Offset)
			return geometry.WriteTable(out, addr, g)
		},
	}
}
