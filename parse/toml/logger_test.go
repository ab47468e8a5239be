package toml

import (
	"strings"
	"sync"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	convey.Convey("debug events reach the installed logger", t, func() {
		core, logs := observer.New(zapcore.DebugLevel)
		SetLogger(zap.New(core))
		defer SetLogger(nil)

		long := strings.Repeat("x", 100)
		mustEncode(tbl("aot", arr(tbl("v", long))), DefaultOptions())
		convey.So(logs.FilterMessage("rendering array of tables as headers").Len(), convey.ShouldEqual, 1)
		convey.So(logs.FilterMessage("encoded toml document").Len(), convey.ShouldEqual, 1)
	})

	convey.Convey("nil restores the no-op logger", t, func() {
		SetLogger(zap.NewExample())
		convey.So(Logger().Core().Enabled(zapcore.DebugLevel), convey.ShouldBeTrue)
		SetLogger(nil)
		convey.So(Logger().Core().Enabled(zapcore.DebugLevel), convey.ShouldBeFalse)
	})

	convey.Convey("the logger can be swapped while encoding", t, func() {
		defer SetLogger(nil)
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := Encode(tbl("a", 1, "t", tbl("b", 2)))
				errs <- err
			}()
		}
		for i := 0; i < 8; i++ {
			SetLogger(zap.NewNop())
			SetLogger(nil)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			convey.So(err, convey.ShouldBeNil)
		}
	})
}
