package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hostwright/hostwright/pkg/tasks"
)

func newTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Invoke and inspect catalog tasks",
	}
	cmd.AddCommand(newTaskInvokeCommand())
	cmd.AddCommand(newTaskListCommand())
	return cmd
}

func newTaskInvokeCommand() *cobra.Command {
	var (
		target string
		params []string
	)

	cmd := &cobra.Command{
		Use:   "invoke <task>",
		Short: "Invoke a catalog task on a target",
		Long: `Invoke one declared task by name. Parameters are passed as
key=value pairs and validated against the task's declaration before
anything runs on the target.`,
		Example: `  # Install a package
  hostwright task invoke pkg.install -t web1 -p package=nginx

  # Check whether a service is running
  hostwright task invoke svc.active -t web1 -p service=nginx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tasks.Params{}
			for _, kv := range params {
				key, val, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("parameter %q is not key=value", kv)
				}
				p[key] = val
			}

			o, cleanup, err := openSession(cmd.Context(), target)
			if err != nil {
				return err
			}
			defer cleanup()

			inv, err := o.Session().Invoke(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			if inv.Warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", inv.Warning)
			}
			if inv.Parsed == nil {
				return nil
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(inv.Parsed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", inv.Parsed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "inventory target to run on")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "task parameter as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func newTaskListCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the task catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			specs := tasks.Builtin().List()
			if category != "" {
				specs = tasks.Builtin().ByCategory(tasks.Category(category))
			}
			for _, s := range specs {
				var names []string
				for _, p := range s.Params {
					name := p.Name
					if !p.Required {
						name = "[" + name + "]"
					}
					names = append(names, name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-12s %s\n",
					s.Name, s.Category, strings.Join(names, " "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "only list one category")
	return cmd
}
