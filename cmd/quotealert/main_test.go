package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ENV_FILE", "")

	cases := []struct {
		name    string
		args    []string
		want    options
		wantErr string
	}{
		{name: "default is one-shot", args: nil, want: options{envFile: ".env"}},
		{name: "explicit one-shot", args: []string{"--one-shot"}, want: options{envFile: ".env"}},
		{name: "loop", args: []string{"--loop", "--db", "/tmp/q.db", "--watchlist", "w.yaml"},
			want: options{loop: true, envFile: ".env", dbPath: "/tmp/q.db", watchlistPath: "w.yaml"}},
		{name: "both modes", args: []string{"--loop", "--one-shot"}, wantErr: "mutually exclusive"},
		{name: "stray args", args: []string{"extra"}, wantErr: "unexpected arguments"},
		{name: "unknown flag", args: []string{"--nope"}, wantErr: "not defined"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseFlags(tc.args, io.Discard)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRun_MissingCredentialsExitsOne(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"ANGEL_API_KEY", "ANGEL_CLIENT_CODE", "ANGEL_PASSWORD", "ANGEL_TOTP_SECRET", "CONFIG_FILE", "ENV_FILE"} {
		t.Setenv(k, "")
	}

	require.Equal(t, 1, run([]string{"--one-shot"}))
}
