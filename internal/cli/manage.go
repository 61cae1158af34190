package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/api"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Opening the store initializes the schema.
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "%s schema ready (%s, dimension %d)\n",
				successMark, a.cfg.DB.Type, a.store.Dimension())
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a memory with its tags and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.svc.Get(cmd.Context(), args[0])
			if err != nil {
				return commandError("get", err)
			}

			out := api.NewMemoryResponse(m)
			return render(cmd, out, func(w io.Writer) {
				printMemory(w, out)
			})
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete memories with their tags and metadata",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, id := range args {
				if err := a.svc.Delete(cmd.Context(), id); err != nil {
					return commandError("delete "+id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s\n", successMark, id)
			}
			return nil
		},
	}
}

func newTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag <id> <tag>...",
		Short: "Attach tags to a memory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			for _, tag := range args[1:] {
				if err := a.svc.Tag(cmd.Context(), id, tag); err != nil {
					return commandError("tag", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s tagged %s with %s\n", successMark, id, strings.Join(args[1:], ", "))
			return nil
		},
	}
}

func newMetaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta <id> <key=value>...",
		Short: "Set metadata entries on a memory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetadata(args[1:])
			if err != nil {
				return err
			}

			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			id := args[0]
			for key, value := range metadata {
				if err := a.svc.SetMetadata(cmd.Context(), id, key, value); err != nil {
					return commandError("set metadata", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s set %d metadata entries on %s\n", successMark, len(metadata), id)
			return nil
		},
	}
}
