package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HatiCode/fdbwatch/pkg/index"
)

func (a *app) listCommand() *cobra.Command {
	var (
		show   []string
		filter string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List metadata values archived in FDB",
		Example: `  fdbwatch list --show step,number --filter date=20240624,time=0600
  fdbwatch list --show param --filter model=icon-ch1-eps`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := index.ParseFilter(filter)
			if err != nil {
				return err
			}
			for _, key := range show {
				if !slices.Contains(index.SchemaKeys, key) {
					return fmt.Errorf("%w: %q", index.ErrInvalidFilterKey, key)
				}
			}
			idx, err := a.openIndex()
			if err != nil {
				return err
			}

			values := make(map[string][]string, len(show))
			for _, key := range show {
				res, err := idx.ListValues(cmd.Context(), key, f)
				if err != nil {
					return fmt.Errorf("list %s: %w", key, err)
				}
				values[key] = sortValues(res[key].Sorted())
			}

			return writeValues(cmd.OutOrStdout(), show, f, values)
		},
	}

	cmd.Flags().StringSliceVar(&show, "show", nil, `The keys to print, e.g. "step,number,param"`)
	cmd.Flags().StringVar(&filter, "filter", "", `The metadata to filter by, e.g. "date=20240624,time=0600"`)
	_ = cmd.MarkFlagRequired("show")
	return cmd
}

func writeValues(w io.Writer, keys []string, f index.Filter, values map[string][]string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Keys/Values of %s in FDB", strings.Join(keys, ", "))
	if f.Len() > 0 {
		fmt.Fprintf(&b, " for %s", f)
	}
	b.WriteString(":\n")

	found := 0
	for _, key := range keys {
		if len(values[key]) == 0 {
			fmt.Fprintf(&b, "%s: Key not found\n", key)
			continue
		}
		found++
		fmt.Fprintf(&b, "%s: %s\n", key, strings.Join(values[key], ", "))
	}
	if found == 0 {
		b.WriteString("None\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// sortValues orders values numerically when they are all integers.
func sortValues(values []string) []string {
	for _, v := range values {
		if _, err := strconv.Atoi(v); err != nil {
			return values
		}
	}
	out := slices.Clone(values)
	slices.SortFunc(out, func(x, y string) int {
		nx, _ := strconv.Atoi(x)
		ny, _ := strconv.Atoi(y)
		return nx - ny
	})
	return out
}
