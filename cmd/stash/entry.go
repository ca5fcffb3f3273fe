package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zoobzio/stash"
)

// getCmd prints the value stored for a key.
var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the value stored for a key",
	Long: `Print the value stored for KEY, encoded with the configured codec.

Exit codes:
  0 - Value printed
  1 - Key not set, or the stored entry could not be decoded`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// setCmd writes a value for a key.
var setCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Write a value for a key",
	Long: `Write VALUE for KEY.

VALUE is decoded with the configured codec; anything that does not decode
is stored as a plain string. Writing the value that is already stored
reports "unchanged" and leaves the backend untouched.

Example:
  stash set theme dark
  stash set limits '{"rps": 100}'`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

// deleteCmd removes a key.
var deleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Remove the entry for a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(getCmd, setCmd, deleteCmd)
}

// withBinding binds KEY in the configured backend for the duration of fn.
func withBinding(cmd *cobra.Command, key string, fn func(ctx context.Context, b *stash.Binding[any], codec stash.Codec) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	codec, err := cfg.codec()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	store, release, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	b, err := stash.Bind[any](ctx, key, store, stash.WithCodec(codec))
	if b != nil {
		defer b.Close()
	}
	if err != nil {
		return err
	}
	return fn(ctx, b, codec)
}

func runGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	return withBinding(cmd, key, func(_ context.Context, b *stash.Binding[any], codec stash.Codec) error {
		v, ok := b.Value()
		if !ok {
			return fmt.Errorf("key %q is not set", key)
		}
		data, err := codec.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(string(data), "\n"))
		return nil
	})
}

func runSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	return withBinding(cmd, key, func(ctx context.Context, b *stash.Binding[any], codec stash.Codec) error {
		var v any
		if err := codec.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		changed, err := b.Set(ctx, v)
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintln(cmd.OutOrStdout(), "updated")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "unchanged")
		}
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	key := args[0]
	return withBinding(cmd, key, func(ctx context.Context, b *stash.Binding[any], _ stash.Codec) error {
		changed, err := b.Delete(ctx)
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "not found")
		}
		return nil
	})
}
