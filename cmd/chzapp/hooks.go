package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/chzapp/internal/hook"
)

// ErrCheckFailed is returned by "hooks check --strict" when a unit fails to load.
var ErrCheckFailed = errors.New("hook units failed to load")

func newHooksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage hook units",
	}
	cmd.AddCommand(
		newHooksListCmd(opts),
		newHooksCheckCmd(opts),
		newHooksNewCmd(opts),
		newHooksWatchCmd(opts),
		newHooksFuncsCmd(opts),
	)
	return cmd
}

func newHooksListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <component>",
		Short: "List the units discovered for a component type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			refs, err := a.Units().Lookup(hook.Key(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(refs) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("no hook units for "+args[0]))
				return nil
			}
			fmt.Fprintln(out, titleStyle.Render(args[0]))
			for _, ref := range refs {
				describe(out, ref)
			}
			return nil
		},
	}
}

func newHooksCheckCmd(opts *rootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load every unit in the hook directory and report failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			refs, err := a.Units().All()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, ref := range refs {
				if !describe(out, ref) {
					failed++
				}
			}
			fmt.Fprintf(out, "%d units, %d failed\n", len(refs), failed)
			if failed > 0 && (strict || a.StrictHooks()) {
				return fmt.Errorf("%w: %d of %d", ErrCheckFailed, failed, len(refs))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any unit fails")
	return cmd
}

// describe loads ref and prints a one-line summary. It reports whether the
// unit loaded.
func describe(out io.Writer, ref hook.Ref) bool {
	u, err := ref.Load()
	if err != nil {
		fmt.Fprintf(out, "  %s %s: %v\n", errorStyle.Render("FAIL"), ref.ID, err)
		return false
	}
	defer u.Close()

	fmt.Fprintf(out, "  %s %s", successStyle.Render("ok"), ref.ID)
	if u.Target != "" {
		fmt.Fprintf(out, " -> %s", u.Target)
	}
	fmt.Fprintln(out)
	for _, part := range []struct {
		label string
		names []string
	}{
		{"properties", u.PropertyNames()},
		{"methods", u.MethodNames()},
		{"events", u.EventNames()},
	} {
		if len(part.names) > 0 {
			fmt.Fprintf(out, "      %s: %s\n", mutedStyle.Render(part.label), strings.Join(part.names, ", "))
		}
	}
	return true
}

func newHooksNewCmd(opts *rootOptions) *cobra.Command {
	var props map[string]string
	var force bool
	cmd := &cobra.Command{
		Use:   "new <component> <suffix>",
		Short: "Write a JSON unit skeleton for a component type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !hook.ValidSuffix(args[1]) {
				return fmt.Errorf("%w: %q (use letters, digits and underscores)", hook.ErrInvalidSuffix, args[1])
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			defaults := make(map[string]any, len(props))
			for k, v := range props {
				defaults[k] = v
			}
			data, err := hook.NewJSONTemplate(args[0], defaults)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.Hooks.Dir, 0755); err != nil {
				return fmt.Errorf("creating hook dir: %w", err)
			}
			path := filepath.Join(cfg.Hooks.Dir, hook.FileName(args[0], args[1], ".json"))
			flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if !force {
				flags |= os.O_EXCL
			}
			f, err := os.OpenFile(path, flags, 0644)
			if err != nil {
				if errors.Is(err, os.ErrExist) {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
				return err
			}
			if _, err := f.Write(data); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringToStringVarP(&props, "property", "p", nil, "property default as name=value (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newHooksWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [component]",
		Short: "Print unit file changes until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			return a.WatchHooks(ctx, func(c hook.Change) {
				if len(args) == 1 && !c.Matches(args[0]) {
					return
				}
				fmt.Fprintf(out, "%s %s\n", mutedStyle.Render(c.Op.String()), c.Name)
			})
		},
	}
}

func newHooksFuncsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "funcs",
		Short: "List the functions manifest units can refer to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			for _, name := range a.Funcs().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
