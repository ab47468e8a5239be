package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/capyflow/aq/parse/toml"
	"github.com/capyflow/aq/pkg"
)

type TomlParams struct {
	Find   string `json:"find"`   // 查找的key，点分路径
	Input  string `json:"input"`  // 输入文件路径
	Output string `json:"output"` // 输出文件地址，为空时写到标准输出
}

var params *TomlParams

var tomlCmd = &cobra.Command{
	Use:   "toml",
	Short: "toml parse tools",
	Long:  "Read a TOML file, optionally select the value under --find, and write it back as normalised TOML.",
	RunE:  tomlRun,
}

func init() {
	params = &TomlParams{}
	tomlCmd.Flags().StringVarP(&params.Find, "find", "f", "", "dotted key to select, e.g. tool.\"my.key\"")
	tomlCmd.Flags().StringVarP(&params.Input, "input", "i", "", "input file path")
	tomlCmd.Flags().StringVarP(&params.Output, "output", "o", "", "output path")

	tomlCmd.Flags().Bool(ConfigKeyMultilineStrings, false, "write strings containing newlines as multiline basic strings")
	tomlCmd.Flags().Int(ConfigKeyMultilineThreshold, 0, "minimum length before a string is written as a multiline string")
	tomlCmd.Flags().Int(ConfigKeyIndent, toml.DefaultIndent, "spaces per level when an inline array wraps")
	tomlCmd.Flags().Int(ConfigKeyMaxWidth, toml.DefaultMaxWidth, "width at which inline arrays wrap")
}

func tomlRun(cmd *cobra.Command, args []string) error {
	if len(params.Input) == 0 {
		return errors.New("no input file path")
	}
	exist, err := pkg.CheckFileExist(params.Input)
	if err != nil {
		return fmt.Errorf("check file exist: %w", err)
	}
	if !exist {
		return fmt.Errorf("input file %s not exist", params.Input)
	}

	f, err := os.Open(params.Input)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	root, err := toml.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", params.Input, err)
	}

	out, err := render(root, params.Find, cfg.EncoderOptions())
	if err != nil {
		return err
	}

	w, err := pkg.OpenOutput(params.Output, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}
	defer w.Close()

	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	cfg.Logger().WithFields(logrus.Fields{
		"input":  params.Input,
		"output": params.Output,
		"find":   params.Find,
		"bytes":  len(out),
	}).Debug("toml written")
	return nil
}

// render encodes the node selected by find. Tables are written as documents,
// other values as their inline form on one line.
func render(root *toml.Table, find string, opts toml.Options) (string, error) {
	if find == "" {
		return toml.EncodeWithOptions(root, opts)
	}
	path, err := toml.SplitKey(find)
	if err != nil {
		return "", fmt.Errorf("invalid key %q: %w", find, err)
	}
	n, ok := toml.Get(root, path...)
	if !ok {
		return "", fmt.Errorf("key %q not found", find)
	}
	if t, ok := n.(*toml.Table); ok {
		return toml.EncodeWithOptions(t, opts)
	}
	s, err := toml.FormatValue(n, opts)
	if err != nil {
		return "", err
	}
	return s + "\n", nil
}
