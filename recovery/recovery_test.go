package recovery

import (
	"context"
	"errors"
	"testing"
)

func TestStrictStrategyFails(t *testing.T) {
	s := NewStrictStrategy()
	if got := s.OnError(context.Background(), errors.New("boom"), Location{}); got != ActionFail {
		t.Fatalf("expected fail, got %s", got)
	}
	if ActionFail.Continue() {
		t.Fatalf("fail must not continue")
	}
}

func TestLenientStrategyRecordsUpToLimit(t *testing.T) {
	s := NewLenientStrategy(2)
	for i := 0; i < 5; i++ {
		if got := s.OnError(context.Background(), errors.New("bad token"), Location{Component: "scanner", ByteOffset: int64(i)}); !got.Continue() {
			t.Fatalf("lenient strategy should continue, got %s", got)
		}
	}
	errs := s.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 recorded errors, got %d", len(errs))
	}
	if errs[0].Error() != "[scanner] offset 0: bad token" {
		t.Fatalf("unexpected message %q", errs[0].Error())
	}
}

func TestForMode(t *testing.T) {
	if _, ok := ForMode("strict").(*StrictStrategy); !ok {
		t.Fatalf("strict mode should map to StrictStrategy")
	}
	if _, ok := ForMode("lenient").(*LenientStrategy); !ok {
		t.Fatalf("lenient mode should map to LenientStrategy")
	}
}
