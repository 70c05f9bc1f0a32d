package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/menuscrape/internal/output"
	"github.com/jmylchreest/menuscrape/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		formatStr, _ := cmd.Flags().GetString("format")
		if formatStr == "" {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
			return nil
		}

		format, err := output.ParseFormat(formatStr)
		if err != nil {
			return err
		}
		w, err := output.NewWriter(os.Stdout, format)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		return w.Write(version.Get())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().String("format", "", "output format: json, yaml (default: text)")
}
