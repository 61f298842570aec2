package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

// recordingTB captures failures instead of stopping the test.
type recordingTB struct {
	testing.TB
	failed bool
	msg    string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.failed = true
	r.msg = fmt.Sprintf(format, args...)
}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.Errorf(format, args...)
}

func (r *recordingTB) Logf(string, ...any) {}

func TestAssertGolden(t *testing.T) {
	t.Chdir(t.TempDir())

	if err := os.MkdirAll("testdata", 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	frame := "\x1b[0m\x1b[1;31mboot"
	if err := os.WriteFile(GoldenPath("frame.golden"), []byte(frame), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Run("matching content passes", func(t *testing.T) {
		rec := &recordingTB{TB: t}
		AssertGolden(rec, frame, "frame.golden")

		if rec.failed {
			t.Fatalf("AssertGolden failed on matching content: %s", rec.msg)
		}
	})

	t.Run("mismatch quotes escapes", func(t *testing.T) {
		rec := &recordingTB{TB: t}
		AssertGolden(rec, "\x1b[0mboot", "frame.golden")

		if !rec.failed {
			t.Fatal("AssertGolden passed on mismatched content")
		}

		if !strings.Contains(rec.msg, `\x1b[0m`) {
			t.Fatalf("mismatch message should quote escapes, got %q", rec.msg)
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		rec := &recordingTB{TB: t}
		AssertGolden(rec, "x", "missing.golden")

		if !rec.failed || !strings.Contains(rec.msg, "-update") {
			t.Fatalf("missing golden should fail with a hint, got %q", rec.msg)
		}
	})
}

func TestPrintable(t *testing.T) {
	if got := printable("plain\ntext"); got != "plain\ntext" {
		t.Errorf("printable() changed plain text: %q", got)
	}

	if got := printable("\x1b[1;32mx"); got != `"\x1b[1;32mx"` {
		t.Errorf("printable() = %s", got)
	}
}
