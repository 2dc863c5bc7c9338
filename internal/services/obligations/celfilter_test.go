package obligsvc

import (
	"math"
	"testing"
)

func TestCompileEligibilityEmptyAndInvalid(t *testing.T) {
	f, err := compileEligibility("   ")
	if err != nil || f != nil {
		t.Fatalf("blank expression: f=%v err=%v", f, err)
	}
	if _, err := compileEligibility("amount >>> 1"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := compileEligibility("subject + amount"); err == nil {
		t.Fatalf("expected check error for string + uint")
	}
}

// Amounts above MaxInt64 must keep their magnitude inside the expression.
func TestEligibilityFullUintRange(t *testing.T) {
	atLeast, err := compileEligibility("amount >= 100")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !atLeast("s", math.MaxUint64, 0) {
		t.Fatalf("max amount failed amount >= 100")
	}
	if atLeast("s", 99, 0) {
		t.Fatalf("99 passed amount >= 100")
	}

	under, err := compileEligibility("amount < 50")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if under("s", uint64(math.MaxInt64)+1, 0) {
		t.Fatalf("amount beyond MaxInt64 classified as small")
	}
	if !under("s", 49, 0) {
		t.Fatalf("49 failed amount < 50")
	}
}
