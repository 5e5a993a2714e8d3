package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codewandler/slotr/core/cluster"
	"github.com/codewandler/slotr/core/command"
	"github.com/codewandler/slotr/core/slot"
)

var (
	keyslotCmd = &cobra.Command{
		Use:   "keyslot KEY...",
		Short: "Print the hash slot of keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", k, slot.OfString(k))
			}
			return nil
		},
	}

	routeCmd = &cobra.Command{
		Use:   "route KEY...",
		Short: "Print the node owning each key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *cluster.Client) error {
				for _, k := range args {
					n, err := c.Route(ctx, []byte(k))
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\t%s\n", k, slot.OfString(k), n.ID, n.Addr())
				}
				return nil
			})
		},
	}

	execCmd = &cobra.Command{
		Use:   "exec COMMAND [ARG...]",
		Short: "Run a command on the cluster",
		Long: `Run a command on the cluster. Keys are taken from the arguments according to
the command: the first argument of single-key commands, every key of MGET-like
commands, and the key of each key/value pair of MSET-like commands. Use --keys
for atomic multi-key commands with trailing non-key arguments and --node for
node-local commands.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExec,
	}

	topologyCmd = &cobra.Command{
		Use:   "topology",
		Short: "Print the current topology as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, c *cluster.Client) error {
				t, err := c.Refresh(ctx)
				if err != nil {
					return err
				}
				out, err := yaml.Marshal(t.Description())
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}
)

func init() {
	execCmd.Flags().Int("keys", -1, "number of leading key arguments of atomic commands (default all)")
	execCmd.Flags().String("node", "", "run the command on this node without routing")
}

func runExec(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *cluster.Client) error {
		name, rest := args[0], toBytes(args[1:])

		if node := viper.GetString("node"); node != "" {
			r, err := c.ExecuteOnNode(ctx, node, name, rest...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), r.String())
			return nil
		}

		spec, ok := c.Commands().Lookup(name)
		if !ok {
			return fmt.Errorf("unknown command %s", strings.ToUpper(name))
		}
		keys, values, err := splitArgs(spec, rest, viper.GetInt("keys"))
		if err != nil {
			return err
		}
		r, err := c.Do(ctx, spec.Name, keys, values...)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.String())
		return nil
	})
}

// splitArgs separates the key arguments of a command line from the others.
func splitArgs(spec command.Spec, args [][]byte, nkeys int) (keys, values [][]byte, err error) {
	switch spec.Class {
	case command.ClusterWide:
		return nil, args, nil
	case command.SingleKey:
		if len(args) == 0 {
			return nil, nil, fmt.Errorf("%s needs a key", spec.Name)
		}
		return args[:1], args[1:], nil
	case command.MultiKeySplittable, command.MultiKeyAtomic:
		if spec.Class == command.MultiKeyAtomic && spec.ValuesPerKey == 0 {
			if nkeys < 0 || nkeys > len(args) {
				nkeys = len(args)
			}
			return args[:nkeys], args[nkeys:], nil
		}
		step := spec.ValuesPerKey + 1
		if len(args)%step != 0 {
			return nil, nil, fmt.Errorf("%s needs %d values per key", spec.Name, spec.ValuesPerKey)
		}
		for i := 0; i < len(args); i += step {
			keys = append(keys, args[i])
			values = append(values, args[i+1:i+step]...)
		}
		return keys, values, nil
	default:
		return nil, nil, fmt.Errorf("%s is %s, use --node", spec.Name, spec.Class)
	}
}

func toBytes(ss []string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}
