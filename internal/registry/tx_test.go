package registry

import (
	"testing"

	"github.com/udv-group/stand-control-bot/internal/model"
)

func TestPlaceholders(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{0, ""},
		{-1, ""},
		{1, "?"},
		{3, "?,?,?"},
	}
	for _, tc := range cases {
		if got := placeholders(tc.n); got != tc.want {
			t.Fatalf("placeholders(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestHostIDArgs(t *testing.T) {
	args := hostIDArgs([]model.HostID{3, 1, 2})
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	for i, want := range []int64{3, 1, 2} {
		if got, ok := args[i].(int64); !ok || got != want {
			t.Fatalf("args[%d] = %v, want %d", i, args[i], want)
		}
	}
}
