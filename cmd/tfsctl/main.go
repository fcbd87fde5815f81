// Command tfsctl drives a throwaway in-memory filesystem from the shell:
// each invocation builds a fresh volume from cfg.Config, performs one
// operation against it, and exits. Nothing persists across invocations —
// there is no backing image to reopen — so tfsctl is a smoke-test and
// demonstration tool for the facade, not a daemon.
package main

import (
	"fmt"
	"io"
	"os"

	tfs "github.com/Ricardo-Luis-Projects/tecnicofs-go"
	"github.com/Ricardo-Luis-Projects/tecnicofs-go/cfg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tfsctl: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tfsctl",
	Short: "Drive a throwaway in-memory filesystem volume.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a config file overriding the engine defaults.")
	if err := cfg.BindFlags(v, rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "tfsctl: %s\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(createCmd, writeCmd, catCmd, cpOutCmd, lsCmd)
}

func newFS() (*tfs.FS, error) {
	c, err := cfg.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	return tfs.New(c)
}

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create an empty file in a fresh volume.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := newFS()
		if err != nil {
			return err
		}
		fh, err := fs.Open(args[0], tfs.Create)
		if err != nil {
			return err
		}
		return fs.Close(fh)
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <path> <host-src>",
	Short: "Create a file in a fresh volume and stream a host file's bytes into it.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := newFS()
		if err != nil {
			return err
		}

		src, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer src.Close()

		fh, err := fs.Open(args[0], tfs.Create|tfs.Truncate)
		if err != nil {
			return err
		}

		buf := make([]byte, fs.Config().BlockSize)
		for {
			n, rerr := src.Read(buf)
			if n > 0 {
				if _, werr := fs.Write(fh, buf[:n]); werr != nil {
					_ = fs.Close(fh)
					return werr
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				_ = fs.Close(fh)
				return rerr
			}
		}
		return fs.Close(fh)
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Read a path out of a fresh (necessarily empty) volume.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := newFS()
		if err != nil {
			return err
		}
		fh, err := fs.Open(args[0], 0)
		if err != nil {
			return err
		}
		defer fs.Close(fh)

		buf := make([]byte, fs.Config().BlockSize)
		for {
			n, err := fs.Read(fh, buf)
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			if _, err := os.Stdout.Write(buf[:n]); err != nil {
				return err
			}
		}
	},
}

var cpOutCmd = &cobra.Command{
	Use:   "cp-out <path> <host-dst>",
	Short: "Copy a path out of a fresh volume to a host file.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := newFS()
		if err != nil {
			return err
		}
		return fs.CopyToExternal(args[0], args[1])
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the root directory of a fresh (necessarily empty) volume.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := newFS()
		if err != nil {
			return err
		}
		names, err := fs.ListRoot()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}
