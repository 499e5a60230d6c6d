package main

import "testing"

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "init-storage"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %s command, got %v %v", name, cmd, err)
		}
	}
}

func TestBodyLimitCoversMaxUpload(t *testing.T) {
	if got := bodyLimit(10 << 20); got != "11264K" {
		t.Fatalf("unexpected body limit %q", got)
	}
}
