package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"couple-diary/internal/diary"
	"couple-diary/internal/logging"
	"couple-diary/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliResult struct {
	err    error
	stdout string
}

func runCLI(stdin string, args ...string) cliResult {
	stdout := new(bytes.Buffer)
	err := run(args, bytes.NewBufferString(stdin), stdout, new(bytes.Buffer))
	return cliResult{err: err, stdout: stdout.String()}
}

func TestRun_CreatesAccount(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		stdin  string
		args   []string
		output []string
	}{
		{
			name:   "password flag",
			args:   []string{"-user", "alice", "-password", "wonderland", "-db", filepath.Join(dir, "flag.db")},
			output: []string{"User alice created successfully"},
		},
		{
			name:   "prompted password",
			stdin:  "typed-secret\n",
			args:   []string{"-user", "bob", "-db", filepath.Join(dir, "prompt.db")},
			output: []string{"Password: ", "User bob created successfully"},
		},
		{
			name:   "username is trimmed",
			args:   []string{"-user", "  carol  ", "-password", "x", "-db", filepath.Join(dir, "trim.db")},
			output: []string{"User carol created successfully"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(tt.stdin, tt.args...)
			require.NoError(t, res.err)
			for _, want := range tt.output {
				assert.Contains(t, res.stdout, want)
			}
		})
	}
}

func TestRun_Failures(t *testing.T) {
	dir := t.TempDir()
	taken := filepath.Join(dir, "taken.db")
	require.NoError(t, runCLI("", "-user", "alice", "-password", "one", "-db", taken).err)

	tests := []struct {
		name    string
		stdin   string
		args    []string
		message string
	}{
		{"missing user", "", []string{"-password", "secret"}, "missing required flags: user"},
		{"empty prompted password", "\n", []string{"-user", "dave"}, "password cannot be empty"},
		{"duplicate username", "", []string{"-user", "alice", "-password", "two", "-db", taken}, "user alice already exists"},
		{"database path is a directory", "", []string{"-user", "erin", "-password", "secret", "-db", dir}, "failed to open database"},
		{"unknown flag", "", []string{"-invalid"}, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(tt.stdin, tt.args...)
			require.Error(t, res.err)
			assert.Contains(t, res.err.Error(), tt.message)
		})
	}

	assert.Contains(t, runCLI("", "-password", "secret").stdout, "Usage:")
}

func TestRun_DBPathFromEnv(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("DB_PATH", dbPath)

	require.NoError(t, runCLI("", "-user", "frank", "-password", "secret").err)
	assert.FileExists(t, dbPath)
}

func TestRun_UserCanAuthenticate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "auth.db")
	require.NoError(t, runCLI("", "-user", "alice", "-password", "wonderland", "-db", dbPath).err)

	db, err := storage.NewDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	svc := diary.NewService(db, nil, logging.Discard())
	user, err := svc.Authenticate(context.Background(), "alice", "wonderland")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "wonderland", user.PasswordHash, "stored as a bcrypt hash")

	_, err = svc.Authenticate(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, diary.ErrInvalidCredentials)
}
