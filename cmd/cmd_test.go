package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/coursewalk/internal/store"
)

// execute runs the root command with fresh flag values and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "progress.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.RegisterCourses(ctx, "Databases", 3, []string{"d1", "d2"})
	require.NoError(t, err)
	_, err = st.RegisterCourses(ctx, "Networks", 3, []string{"n1"})
	require.NoError(t, err)
	_, err = st.RegisterCourses(ctx, "Databases", 4, []string{"d1"})
	require.NoError(t, err)
	require.NoError(t, st.MarkProcessed(ctx, "Databases", "d1", 3))
	return path
}

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "config.json")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 130, ExitCode(fmt.Errorf("run: %w", &ExitError{Code: 130, Err: context.Canceled})))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "coursewalk")
}

func TestStats(t *testing.T) {
	db := seedStore(t)
	out, err := execute(t, "stats", "--db", db, "--semester", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Semester 3")
	assert.Contains(t, out, "Databases")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "0/1")
}

func TestStats_EnvDBOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	body := fmt.Sprintf(`{"db": {"db_path": %q}}`, filepath.Join(dir, "unused.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	t.Setenv("COURSEWALK_DB", seedStore(t))

	out, err := execute(t, "stats", "--config", cfgPath, "--semester", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "1/2")
	assert.NoFileExists(t, filepath.Join(dir, "unused.db"))
}

func TestStats_ExplicitMissingConfig(t *testing.T) {
	_, err := execute(t, "stats", "--config", missingConfig(t), "--db", seedStore(t))
	require.Error(t, err)
}

func TestReset_Subject(t *testing.T) {
	db := seedStore(t)
	out, err := execute(t, "reset", "--db", db, "--subject", "Databases")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 3 records.")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	summary, err := st.Summary(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, "Networks", summary[0].Subject)
}

func TestReset_All(t *testing.T) {
	db := seedStore(t)
	out, err := execute(t, "reset", "--db", db, "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 4 records.")
}

func TestReset_RequiresExactlyOneTarget(t *testing.T) {
	db := seedStore(t)
	_, err := execute(t, "reset", "--db", db)
	require.Error(t, err)
	_, err = execute(t, "reset", "--db", db, "--all", "--subject", "Networks")
	require.Error(t, err)
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("COURSEWALK_BASE_URL", "")
	t.Setenv("COURSEWALK_ACCESS_TOKEN", "")
	_, err := execute(t, "run", "--db", seedStore(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote.base_url is required")
	assert.Equal(t, 1, ExitCode(err))
}
