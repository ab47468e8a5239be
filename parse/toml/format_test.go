package toml

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func scalar(v *Value, multiline bool) string {
	opts := DefaultOptions()
	opts.MultilineStrings = true
	s, err := formatScalar(v, opts, multiline)
	convey.So(err, convey.ShouldBeNil)
	return s
}

func TestFormatKey(t *testing.T) {
	convey.Convey("bare and quoted keys", t, func() {
		convey.So(FormatKey("abc_DEF-123"), convey.ShouldEqual, "abc_DEF-123")
		convey.So(FormatKey(""), convey.ShouldEqual, `""`)
		convey.So(FormatKey("a.b"), convey.ShouldEqual, `"a.b"`)
		convey.So(FormatKey(`say "hi"`), convey.ShouldEqual, `"say \"hi\""`)
		convey.So(FormatKey("tab\there"), convey.ShouldEqual, `"tab\there"`)
		convey.So(formatPath([]string{"a", "", "b c"}), convey.ShouldEqual, `a.""."b c"`)
	})
}

func TestFormatStrings(t *testing.T) {
	convey.Convey("single-line escapes", t, func() {
		convey.So(scalar(String("plain"), false), convey.ShouldEqual, `"plain"`)
		convey.So(scalar(String("a\"b\\c"), false), convey.ShouldEqual, `"a\"b\\c"`)
		convey.So(scalar(String("\b\t\n\f\r"), false), convey.ShouldEqual, `"\b\t\n\f\r"`)
		convey.So(scalar(String("\x00\x1f\x7f"), false), convey.ShouldEqual, `"\u0000\u001f\u007f"`)
		convey.So(scalar(String("héllo ✓"), false), convey.ShouldEqual, `"héllo ✓"`)
	})

	convey.Convey("multiline form", t, func() {
		convey.So(scalar(String("a\nb"), true), convey.ShouldEqual, "\"\"\"\na\nb\"\"\"")
		convey.So(scalar(String("a\r\nb"), true), convey.ShouldEqual, "\"\"\"\na\nb\"\"\"")
		convey.So(scalar(String("tab\there\n\\"), true), convey.ShouldEqual, "\"\"\"\ntab\there\n\\\\\"\"\"")
		convey.So(scalar(String("x\"\"\"y\n"), true), convey.ShouldEqual, "\"\"\"\nx\"\"\\\"y\n\"\"\"")
		convey.So(scalar(String("end\n\""), true), convey.ShouldEqual, "\"\"\"\nend\n\\\"\"\"\"")
	})

	convey.Convey("multiline form writes CRLF as LF", t, func() {
		opts := DefaultOptions()
		opts.MultilineStrings = true
		out := mustEncode(tbl("s", "a\r\nb\r\n"), opts)
		convey.So(out, convey.ShouldEqual, "s = \"\"\"\na\nb\n\"\"\"\n")

		parsed, err := Parse(strings.NewReader(out))
		convey.So(err, convey.ShouldBeNil)
		convey.So(MustString(parsed.Items["s"]), convey.ShouldEqual, "a\nb\n")

		opts.MultilineStrings = false
		convey.So(mustEncode(tbl("s", "a\r\nb"), opts), convey.ShouldEqual, "s = \"a\\r\\nb\"\n")
	})

	convey.Convey("strings without newlines stay single-line", t, func() {
		convey.So(scalar(String("no newline here"), true), convey.ShouldEqual, `"no newline here"`)
	})
}

func TestFormatNumbers(t *testing.T) {
	convey.Convey("integers", t, func() {
		convey.So(scalar(Int(-42), false), convey.ShouldEqual, "-42")
		convey.So(scalar(&Value{Type: tomlValueKinds.ValueInt, V: uint8(7)}, false), convey.ShouldEqual, "7")
		convey.So(scalar(&Value{Type: tomlValueKinds.ValueInt, V: math.MaxInt64}, false), convey.ShouldEqual, "9223372036854775807")
	})

	convey.Convey("floats", t, func() {
		convey.So(scalar(Float(1), false), convey.ShouldEqual, "1.0")
		convey.So(scalar(Float(-0.5), false), convey.ShouldEqual, "-0.5")
		convey.So(scalar(Float(math.Copysign(0, -1)), false), convey.ShouldEqual, "-0.0")
		convey.So(scalar(Float(3.14159), false), convey.ShouldEqual, "3.14159")
		convey.So(scalar(Float(1e16), false), convey.ShouldEqual, "1e+16")
		convey.So(scalar(Float(1e-5), false), convey.ShouldEqual, "1e-05")
		convey.So(scalar(Float(123456789), false), convey.ShouldEqual, "123456789.0")
		convey.So(scalar(&Value{Type: tomlValueKinds.ValueFloat, V: float32(0.1)}, false), convey.ShouldEqual, "0.1")
		convey.So(scalar(Float(math.Inf(1)), false), convey.ShouldEqual, "inf")
		convey.So(scalar(Float(math.Inf(-1)), false), convey.ShouldEqual, "-inf")
		convey.So(scalar(Float(math.NaN()), false), convey.ShouldEqual, "nan")
	})

	convey.Convey("booleans and literals", t, func() {
		convey.So(scalar(Bool(true), false), convey.ShouldEqual, "true")
		convey.So(scalar(Bool(false), false), convey.ShouldEqual, "false")
		convey.So(scalar(Literal("0xDEADBEEF"), false), convey.ShouldEqual, "0xDEADBEEF")
		convey.So(scalar(Literal(`'C:\path'`), true), convey.ShouldEqual, `'C:\path'`)
	})
}

func TestFormatDates(t *testing.T) {
	convey.Convey("date and time kinds", t, func() {
		odt := time.Date(1979, 5, 27, 7, 32, 0, 0, time.UTC)
		convey.So(scalar(Datetime(odt), false), convey.ShouldEqual, "1979-05-27T07:32:00Z")

		offset := time.Date(1979, 5, 27, 0, 32, 0, 999999000, time.FixedZone("", -7*3600))
		convey.So(scalar(Datetime(offset), false), convey.ShouldEqual, "1979-05-27T00:32:00.999999-07:00")

		convey.So(scalar(LocalDate(odt), false), convey.ShouldEqual, "1979-05-27")
		convey.So(scalar(LocalTime(odt), false), convey.ShouldEqual, "07:32:00")
		convey.So(scalar(LocalDatetime(odt.Add(500*time.Millisecond)), false), convey.ShouldEqual, "1979-05-27T07:32:00.5")
	})
}
