package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"codeweave/internal/config"
	"codeweave/internal/dex"
	"codeweave/internal/testkit"
)

func saveApp(t *testing.T) (string, *testkit.App) {
	t.Helper()
	app := testkit.NewApp(t)
	path := filepath.Join(t.TempDir(), "app.mp")
	if err := dex.Save(path, app.Binary); err != nil {
		t.Fatal(err)
	}
	return path, app
}

func capture(cmd *cobra.Command) *bytes.Buffer {
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetContext(context.Background())
	return &buf
}

func TestSigCommand(t *testing.T) {
	buf := capture(sigCmd)
	if err := runSig(sigCmd, []string{"Lcom/example/Foo;->bar(I[Ljava/lang/String;)Z"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"class:  Lcom/example/Foo; (com.example.Foo)",
		"name:   bar",
		"params: [int, java.lang.String[]]",
		"return: boolean",
		"shorty: ZIL",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if err := runSig(sigCmd, []string{"broken"}); err == nil {
		t.Error("expected error for malformed signature")
	}
}

func TestResolveCommand(t *testing.T) {
	path, app := saveApp(t)
	tests := []struct {
		kind, name string
		want       string
		wantErr    bool
	}{
		{"method", testkit.MainClass + "->run()V", "run()V", false},
		{"method", "run", "run()V", false},
		{"type", "com.example.app.Main", testkit.MainClass, false},
		{"field", testkit.CodeLibInstance, testkit.CodeLibClass + "->" + testkit.CodeLibInstance, false},
		{"class", testkit.CodeLibClass, testkit.CodeLibClass, false},
		{"method", "missing", "", true},
		{"widget", "x", "", true},
	}
	for _, tt := range tests {
		buf := capture(resolveCmd)
		err := runResolve(resolveCmd, []string{path, tt.kind, tt.name})
		if (err != nil) != tt.wantErr {
			t.Errorf("resolve %s %q: err = %v", tt.kind, tt.name, err)
			continue
		}
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("resolve %s %q = %q, want it to contain %q", tt.kind, tt.name, buf.String(), tt.want)
		}
	}
	_ = app
}

func TestInstrumentCommand(t *testing.T) {
	path, app := saveApp(t)
	cfg = config.Default()
	t.Cleanup(func() { cfg = nil })

	out := filepath.Join(t.TempDir(), "woven.mp")
	buf := capture(instrumentCmd)
	for name, value := range map[string]string{"output": out, "modules": "callsite,census", "no-cache": "true", "ui": "off"} {
		if err := instrumentCmd.Flags().Set(name, value); err != nil {
			t.Fatal(err)
		}
	}
	if err := runInstrument(instrumentCmd, []string{path}); err != nil {
		t.Fatalf("instrument: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "instrumented 4") {
		t.Errorf("unexpected report:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), testkit.AppLocation) {
		t.Errorf("census table missing:\n%s", buf.String())
	}
	bin, err := dex.Load(out)
	if err != nil {
		t.Fatal(err)
	}
	em, _ := bin.EncodedMethod(app.Run)
	orig, _ := app.Binary.EncodedMethod(app.Run)
	if em.Code.NumInsns() <= orig.Code.NumInsns() {
		t.Error("run() was not instrumented")
	}
}

func TestConfigCommand(t *testing.T) {
	cfg = config.Default()
	t.Cleanup(func() { cfg = nil })
	buf := capture(configCmd)
	if err := configCmd.RunE(configCmd, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "built-in defaults") || !strings.Contains(buf.String(), config.DefaultCodeLibClass) {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestDumpCommand(t *testing.T) {
	path, _ := saveApp(t)
	buf := capture(dumpCmd)
	if err := dumpCmd.Flags().Set("method", testkit.MainClass+"->add(II)I"); err != nil {
		t.Fatal(err)
	}
	if err := runDump(dumpCmd, []string{path}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "bb0 entry") {
		t.Errorf("graph dump missing entry block:\n%s", buf.String())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
}

func TestReadUIMode(t *testing.T) {
	tests := []struct {
		in      string
		want    uiMode
		wantErr bool
	}{
		{"", uiModeAuto, false},
		{" AUTO ", uiModeAuto, false},
		{"on", uiModeOn, false},
		{"off", uiModeOff, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := readUIMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("readUIMode(%q) = %q, %v", tt.in, got, err)
		}
	}
	if !shouldUseTUI(uiModeOn) || shouldUseTUI(uiModeOff) {
		t.Error("explicit modes must win over terminal detection")
	}
}

func TestVersionCommand(t *testing.T) {
	cfg = nil
	buf := capture(versionCmd)
	if err := versionCmd.Flags().Set("json", "true"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = versionCmd.Flags().Set("json", "false") })
	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"tool": "codeweave"`, config.DefaultCodeLibClass} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}
