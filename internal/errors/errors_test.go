package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestCLIError_ErrorIncludesCause(t *testing.T) {
	cause := errors.New("slot taken")
	err := RegistrationFailed(cause)

	if got := err.Error(); got != "Failed to register system console user interface: slot taken" {
		t.Fatalf("Error() = %q", got)
	}

	if !errors.Is(err, cause) {
		t.Fatal("errors.Is() did not find the cause")
	}

	if New(ExitGeneral, "plain").Error() != "plain" {
		t.Fatal("Error() without cause should be the message")
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      *CLIError
		wantCode int
		wantMsg  string
	}{
		{name: "config", err: ConfigInvalid(cause), wantCode: ExitConfig, wantMsg: "Invalid configuration"},
		{name: "registration", err: RegistrationFailed(cause), wantCode: ExitHost, wantMsg: "register"},
		{name: "console", err: ConsoleFailed(cause), wantCode: ExitHost, wantMsg: "unexpected host error"},
		{name: "capsule", err: CapsuleStartFailed(3, cause), wantCode: ExitHost, wantMsg: "capsule 3"},
		{name: "hypervisor source", err: HypervisorSourceFailed("/tmp/hv", cause), wantCode: ExitConfig, wantMsg: "/tmp/hv"},
		{name: "input", err: InputUnavailable(cause), wantCode: ExitHost, wantMsg: "local input"},
		{name: "metrics", err: MetricsFailed(":1", cause), wantCode: ExitGeneral, wantMsg: ":1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", tt.err.Code, tt.wantCode)
			}

			if !strings.Contains(tt.err.Message, tt.wantMsg) {
				t.Errorf("message = %q, want to contain %q", tt.err.Message, tt.wantMsg)
			}

			if tt.err.Hint == "" {
				t.Error("hint is empty")
			}

			if !errors.Is(tt.err, cause) {
				t.Error("cause not wrapped")
			}
		})
	}
}

func TestAs(t *testing.T) {
	wrapped := Wrap(ExitUsage, "bad flag", errors.New("unknown")).WithHint("see --help")

	var target *CLIError
	if !As(errors.Join(errors.New("outer"), wrapped), &target) {
		t.Fatal("As() = false")
	}

	if target.Hint != "see --help" || target.Code != ExitUsage {
		t.Fatalf("As() target = %+v", target)
	}
}
