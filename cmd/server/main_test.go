package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	dbstore "github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/db"
)

func openStore(t *testing.T) *dbstore.SQLiteStore {
	t.Helper()
	st, err := dbstore.Open(filepath.Join(t.TempDir(), "wall.db"), "", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestMigrateLegacyState(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	require.NoError(t, MigrateLegacyState(ctx, writeFile(t, `{"lastSubmittedAnswerId": 314}`), st, zap.NewNop()))
	id, err := st.LastSeenAnswer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "314", id)

	// a second import never overwrites what the server has tracked since
	require.NoError(t, MigrateLegacyState(ctx, writeFile(t, `{"lastSubmittedAnswerId": "999"}`), st, zap.NewNop()))
	id, err = st.LastSeenAnswer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "314", id)
}

func TestMigrateLegacyState_Noops(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	assert.NoError(t, MigrateLegacyState(ctx, "", st, zap.NewNop()))
	assert.NoError(t, MigrateLegacyState(ctx, filepath.Join(t.TempDir(), "missing.json"), st, zap.NewNop()))
	assert.NoError(t, MigrateLegacyState(ctx, writeFile(t, `{"lastSubmittedAnswerId": null}`), st, zap.NewNop()))
	assert.Error(t, MigrateLegacyState(ctx, writeFile(t, `not json`), st, zap.NewNop()))

	id, err := st.LastSeenAnswer(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestRunCommand_HashPIN(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runCommand("hash-pin", []string{"-pin", "2468"}, &out))
	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("2468")))

	assert.Error(t, runCommand("hash-pin", nil, &out))
	assert.Error(t, runCommand("bogus", nil, &out))
}

func TestRunCommand_Token(t *testing.T) {
	t.Setenv("WALL_CONFIG", "")
	t.Setenv("WALL_ENV", "test")
	t.Setenv("WALL_JWT_SECRET", "cli-secret-0123456789")

	var out bytes.Buffer
	require.NoError(t, runCommand("token", []string{"-kiosk", "scanner-1", "-ttl", "1h"}, &out))
	tok := strings.TrimSpace(out.String())
	assert.Equal(t, 2, strings.Count(tok, "."), "compact JWT")

	assert.Error(t, runCommand("token", []string{"-ttl", "1h"}, &out), "kiosk id required")
}
