package prof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSession_Mem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.pprof")
	s, err := Start(Options{Mem: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("heap profile not written: %v", err)
	}
	var nilSession *Session
	if err := nilSession.Stop(); err != nil {
		t.Error(err)
	}
	if (Options{}).Enabled() {
		t.Error("empty options enabled")
	}
}
