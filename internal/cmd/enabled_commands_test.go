package cmd

import "testing"

func TestParseCommandList(t *testing.T) {
	t.Parallel()

	got := parseCommandList("upload, watch ,Auth,,")
	if len(got) != 3 || !got["upload"] || !got["watch"] || !got["auth"] {
		t.Fatalf("unexpected list: %#v", got)
	}
}

func TestCommandPath(t *testing.T) {
	t.Parallel()

	got := commandPath("auth login <email>")
	if len(got) != 2 || got[0] != "auth" || got[1] != "login" {
		t.Fatalf("unexpected path: %#v", got)
	}
}

func TestEnforceCommandPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		command  string
		enabled  string
		disabled string
		wantErr  bool
	}{
		{name: "no policy", command: "upload <rows>", wantErr: false},
		{name: "allowed top level", command: "upload", enabled: "upload,download", wantErr: false},
		{name: "not in allow list", command: "watch", enabled: "upload,download", wantErr: true},
		{name: "wildcard", command: "watch", enabled: "*", wantErr: false},
		{name: "all keyword", command: "watch", enabled: "all", wantErr: false},
		{name: "deny exact", command: "auth logout <email>", disabled: "auth.logout", wantErr: true},
		{name: "deny parent", command: "auth logout <email>", disabled: "auth", wantErr: true},
		{name: "deny sibling only", command: "auth login <email>", disabled: "auth.logout", wantErr: false},
		{name: "deny case insensitive", command: "Config Set <key> <value>", disabled: "CONFIG.set", wantErr: true},
		{name: "deny wins over allow", command: "watch", enabled: "watch", disabled: "watch", wantErr: true},
		{name: "empty command", command: "", enabled: "upload", wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := enforceCommandPolicy(tt.command, tt.enabled, tt.disabled)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if err != nil && ExitCode(err) != 2 {
				t.Fatalf("expected usage exit code, got %d", ExitCode(err))
			}
		})
	}
}
