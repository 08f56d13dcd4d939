package model_test

import (
	"testing"

	"github.com/kalil0321/stapply/internal/model"
)

// ── ParseSearchStatus ──────────────────────────────────────────────────────

func TestParseSearchStatus_ValidValues(t *testing.T) {
	valid := []string{"in-progress", "validating", "query", "data_validation", "done"}
	for _, s := range valid {
		got, err := model.ParseSearchStatus(s)
		if err != nil {
			t.Errorf("ParseSearchStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseSearchStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseSearchStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"", "pending", "DONE", " done"} {
		if _, err := model.ParseSearchStatus(s); err == nil {
			t.Errorf("ParseSearchStatus(%q) expected error, got nil", s)
		}
	}
}

// ── CanTransition — forward steps ──────────────────────────────────────────

func TestCanTransition_Forward(t *testing.T) {
	cases := []struct {
		from model.SearchStatus
		to   model.SearchStatus
	}{
		{model.SearchInProgress, model.SearchValidating},
		{model.SearchValidating, model.SearchQuerying},
		{model.SearchQuerying, model.SearchDataValidation},
		{model.SearchDataValidation, model.SearchDone},
	}
	for _, c := range cases {
		if !model.CanTransition(c.from, c.to) {
			t.Errorf("CanTransition(%s → %s) should be true", c.from, c.to)
		}
	}
}

// Every non-terminal stage may short-circuit straight to done on failure.
func TestCanTransition_ShortCircuitToDone(t *testing.T) {
	nonTerminals := []model.SearchStatus{
		model.SearchInProgress,
		model.SearchValidating,
		model.SearchQuerying,
		model.SearchDataValidation,
	}
	for _, from := range nonTerminals {
		if !model.CanTransition(from, model.SearchDone) {
			t.Errorf("CanTransition(%s → done) should be true", from)
		}
	}
}

// ── CanTransition — regressions and self-transitions are forbidden ─────────

func TestCanTransition_NeverBackward(t *testing.T) {
	ordered := []model.SearchStatus{
		model.SearchInProgress,
		model.SearchValidating,
		model.SearchQuerying,
		model.SearchDataValidation,
		model.SearchDone,
	}
	for i, from := range ordered {
		for j, to := range ordered {
			if j > i {
				continue
			}
			if model.CanTransition(from, to) {
				t.Errorf("CanTransition(%s → %s) should be false", from, to)
			}
		}
	}
}

func TestCanTransition_DoneIsTerminal(t *testing.T) {
	targets := []model.SearchStatus{
		model.SearchInProgress,
		model.SearchValidating,
		model.SearchQuerying,
		model.SearchDataValidation,
		model.SearchDone,
	}
	for _, to := range targets {
		if model.CanTransition(model.SearchDone, to) {
			t.Errorf("CanTransition(done → %s) should be false (terminal state)", to)
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	if model.CanTransition("bogus", model.SearchDone) {
		t.Error("CanTransition(bogus → done) should be false")
	}
	if model.CanTransition(model.SearchInProgress, "bogus") {
		t.Error("CanTransition(in-progress → bogus) should be false")
	}
}

// ── ResultStatus ───────────────────────────────────────────────────────────

func TestResultStatus_Terminal(t *testing.T) {
	if model.ResultPending.IsTerminal() {
		t.Error("pending should not be terminal")
	}
	for _, s := range []model.ResultStatus{model.ResultValid, model.ResultPartial, model.ResultInvalid} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestResultStatus_Accepted(t *testing.T) {
	cases := []struct {
		status model.ResultStatus
		want   bool
	}{
		{model.ResultPending, false},
		{model.ResultValid, true},
		{model.ResultPartial, true},
		{model.ResultInvalid, false},
	}
	for _, c := range cases {
		if got := c.status.Accepted(); got != c.want {
			t.Errorf("%s.Accepted() = %v, want %v", c.status, got, c.want)
		}
	}
}
