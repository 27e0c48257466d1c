package main

import "testing"

func TestParseCmdFlags(t *testing.T) {
	cmd := parseCmd()
	if cmd.Flags().Lookup("country") == nil {
		t.Error("missing --country flag")
	}
	if cmd.Flags().Lookup("language") == nil {
		t.Error("missing --language flag")
	}
	if def := cmd.Flags().Lookup("language").DefValue; def != "en" {
		t.Errorf("language default = %q, want en", def)
	}
	if err := cmd.Args(cmd, nil); err == nil {
		t.Error("parse accepts zero files")
	}
}

func TestMigrateCmdSubcommands(t *testing.T) {
	cmd := migrateCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["up"] || !names["status"] {
		t.Errorf("migrate subcommands = %v", names)
	}
}
