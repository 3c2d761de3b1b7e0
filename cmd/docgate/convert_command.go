package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var target string
	var output string

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a document through a running gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(target), "."))
			if ext == "" {
				return errors.New("--to is required (for example --to pdf)")
			}

			source := args[0]
			in, err := os.Open(source)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer in.Close()

			client, err := ctx.client()
			if err != nil {
				return err
			}

			toStdout := output == "-"
			dst := output
			if dst == "" {
				stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
				dst = stem + "." + ext
			}

			var w io.Writer = cmd.OutOrStdout()
			var tmpPath string
			if !toStdout {
				tmp, err := os.CreateTemp(filepath.Dir(dst), ".docgate-*")
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				tmpPath = tmp.Name()
				defer func() {
					_ = tmp.Close()
					_ = os.Remove(tmpPath)
				}()
				w = tmp
			}

			result, err := client.Convert(cmd.Context(), filepath.Base(source), in, ext, w)
			if err != nil {
				return wrapClientError(err, ctx.serverAddress())
			}
			if toStdout {
				return nil
			}
			if closer, ok := w.(io.Closer); ok {
				if err := closer.Close(); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			}
			if err := os.Rename(tmpPath, dst); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%s, %s)\n", dst, result.ContentType, humanize.IBytes(uint64(max(result.Bytes, 0))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "to", "t", "", "Target format extension")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path, or - for stdout (defaults to <name>.<ext>)")
	return cmd
}
