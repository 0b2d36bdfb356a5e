package subs_test

import (
	"reflect"
	"testing"

	"github.com/zsprackett/subbridge/internal/subs"
)

func TestNormalizeSortsAndAligns(t *testing.T) {
	in := []subs.Cue{
		{Text: " second ", StartMS: 5004, EndMS: 6007},
		{Text: "first", StartMS: 1001, EndMS: 2009},
	}
	got := subs.Normalize(in, 0, false)
	want := []subs.Cue{
		{Text: "first", StartMS: 1000, EndMS: 2000},
		{Text: "second", StartMS: 5000, EndMS: 6000},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNormalizeNegativeDelayClampsToZero(t *testing.T) {
	in := []subs.Cue{{Text: "early", StartMS: 500, EndMS: 1500}}
	got := subs.Normalize(in, -1000, false)
	if got[0].StartMS != 0 {
		t.Errorf("start = %d, want 0", got[0].StartMS)
	}
	if got[0].EndMS != 500 {
		t.Errorf("end = %d, want 500", got[0].EndMS)
	}
}

func TestNormalizeSkipEmpty(t *testing.T) {
	in := []subs.Cue{
		{Text: "   ", StartMS: 0, EndMS: 100},
		{Text: "kept", StartMS: 200, EndMS: 300},
		{Text: "", StartMS: 400, EndMS: 500},
	}
	got := subs.Normalize(in, 0, true)
	if len(got) != 1 || got[0].Text != "kept" {
		t.Errorf("got %+v, want only the non-empty cue", got)
	}
}

func TestNormalizeInvariants(t *testing.T) {
	in := []subs.Cue{
		{Text: "c", StartMS: 9999, EndMS: 10321},
		{Text: "a", StartMS: 3, EndMS: 17},
		{Text: "b", StartMS: 555, EndMS: 1234},
	}
	got := subs.Normalize(in, 35, true)
	for i, c := range got {
		if i > 0 && got[i-1].StartMS > c.StartMS {
			t.Errorf("cue %d out of order", i)
		}
		if c.EndMS < c.StartMS {
			t.Errorf("cue %d: end %d < start %d", i, c.EndMS, c.StartMS)
		}
		if c.StartMS%10 != 0 || c.EndMS%10 != 0 {
			t.Errorf("cue %d: timestamps not 10ms-aligned: %+v", i, c)
		}
	}
}

func TestNormalizeIdempotentAtZeroDelay(t *testing.T) {
	in := []subs.Cue{
		{Text: " x ", StartMS: 123, EndMS: 456},
		{Text: "y", StartMS: 7, EndMS: 89},
	}
	once := subs.Normalize(in, 0, true)
	twice := subs.Normalize(once, 0, true)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("not idempotent: %+v vs %+v", once, twice)
	}
}
