package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"github.com/capyflow/aq/parse/toml"
)

const sample = `title = "demo"
[tool.lint]
rules = ["a", "b"]
notes = """
first
second"""
[[servers]]
name = "alpha"
port = 8080
[[servers]]
name = "beta"
port = 8081
`

func writeSample(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "in.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func resetFlags() {
	*params = TomlParams{}
	for _, c := range []*pflag.FlagSet{tomlCmd.Flags(), rootCmd.PersistentFlags()} {
		c.VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
}

func run(args ...string) (string, error) {
	resetFlags()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTomlCommand(t *testing.T) {
	chdir(t, t.TempDir())
	input := writeSample(t, sample)

	convey.Convey("re-encodes the whole document", t, func() {
		out, err := run("toml", "-i", input)
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, `title = "demo"
servers = [ { name = "alpha", port = 8080 }, { name = "beta", port = 8081 },]

[tool.lint]
rules = [ "a", "b",]
notes = "first\nsecond"
`)
	})

	convey.Convey("writes multiline strings when asked", t, func() {
		out, err := run("toml", "-i", input, "--find", "tool", "--multiline-strings")
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, "[lint]\nrules = [ \"a\", \"b\",]\nnotes = \"\"\"\nfirst\nsecond\"\"\"\n")
	})

	convey.Convey("selects scalars and arrays", t, func() {
		out, err := run("toml", "-i", input, "-f", "servers")
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, "[ { name = \"alpha\", port = 8080 }, { name = \"beta\", port = 8081 },]\n")

		out, err = run("toml", "-i", input, "-f", "title")
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, "\"demo\"\n")
	})

	convey.Convey("narrow widths wrap arrays", t, func() {
		out, err := run("toml", "-i", input, "-f", "tool.lint.rules", "--max-width", "5", "--indent", "2")
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, "[\n  \"a\",\n  \"b\",\n]\n")
	})

	convey.Convey("writes to the output file", t, func() {
		target := filepath.Join(t.TempDir(), "out.toml")
		out, err := run("toml", "-i", input, "-f", "title", "-o", target)
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, "")

		data, err := os.ReadFile(target)
		convey.So(err, convey.ShouldBeNil)
		convey.So(string(data), convey.ShouldEqual, "\"demo\"\n")
	})

	convey.Convey("reports bad input", t, func() {
		_, err := run("toml")
		convey.So(err, convey.ShouldNotBeNil)

		_, err = run("toml", "-i", filepath.Join(t.TempDir(), "missing.toml"))
		convey.So(err.Error(), convey.ShouldContainSubstring, "not exist")

		_, err = run("toml", "-i", input, "-f", "nope")
		convey.So(err.Error(), convey.ShouldContainSubstring, "not found")

		_, err = run("toml", "-i", writeSample(t, "a = \n"))
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestTomlConfigSources(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	input := writeSample(t, "s = \"x\\ny\"\n")

	convey.Convey("environment variables set options", t, func() {
		t.Setenv("AQ_MULTILINE_STRINGS", "true")
		out, err := run("toml", "-i", input)
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, "s = \"\"\"\nx\ny\"\"\"\n")
	})

	convey.Convey("an explicit config file sets options", t, func() {
		conf := filepath.Join(dir, "custom.toml")
		convey.So(os.WriteFile(conf, []byte("multiline-strings = true\n"), 0o644), convey.ShouldBeNil)

		out, err := run("toml", "-i", input, "--config", conf)
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldEqual, "s = \"\"\"\nx\ny\"\"\"\n")
	})

	convey.Convey("a missing explicit config file is an error", t, func() {
		_, err := run("toml", "-i", input, "--config", filepath.Join(dir, "absent.toml"))
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestEncoderLogging(t *testing.T) {
	chdir(t, t.TempDir())
	input := writeSample(t, "a = 1\n")

	convey.Convey("debug runs enable encoder logging and later runs reset it", t, func() {
		defer toml.SetLogger(nil)

		_, err := run("toml", "-i", input, "--log-level", "debug")
		convey.So(err, convey.ShouldBeNil)
		convey.So(toml.Logger().Core().Enabled(zapcore.DebugLevel), convey.ShouldBeTrue)

		_, err = run("toml", "-i", input)
		convey.So(err, convey.ShouldBeNil)
		convey.So(toml.Logger().Core().Enabled(zapcore.DebugLevel), convey.ShouldBeFalse)
	})
}

func TestVersionCommand(t *testing.T) {
	chdir(t, t.TempDir())
	convey.Convey("prints the version", t, func() {
		out, err := run("version")
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldContainSubstring, "Aq v0.2")
	})
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores the original one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
