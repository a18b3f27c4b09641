package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	v, c, d := Info()
	switch {
	case v == "":
		t.Error("version should not be empty")
	case c == "":
		t.Error("commit should not be empty")
	case d == "":
		t.Error("date should not be empty")
	default:
		t.Log("version: ", v)
		t.Log("commit: ", c)
		t.Log("date: ", d)
	}
}

func TestString(t *testing.T) {
	s := String()
	switch {
	case !strings.Contains(s, "version="):
		t.Error("String should contain 'version='")
	case !strings.Contains(s, "commit="):
		t.Error("String should contain 'commit='")
	case !strings.Contains(s, "date="):
		t.Error("String should contain 'date='")
	default:
		t.Log("string: ", s)
	}
}

func TestVersionConsistency(t *testing.T) {
	v1, c1, d1 := Info()
	if v1 != GetVersion() {
		t.Errorf("GetVersion (%s) should match Info version (%s)", GetVersion(), v1)
	}
	if c1 != GetCommit() {
		t.Errorf("GetCommit (%s) should match Info commit (%s)", GetCommit(), c1)
	}
	if d1 != GetDate() {
		t.Errorf("GetDate (%s) should match Info date (%s)", GetDate(), d1)
	}
}
