package migrate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShippedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
	require.NoError(t, ValidateEmbedded())
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	now = func() time.Time { return time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	path, err := CreateSQLMigration(dir, "Add Order Tracking!")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20261014093000_add_order_tracking.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "add order tracking")
	require.ErrorIs(t, err, fs.ErrExist)

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]struct {
		files map[string]string
		want  string
	}{
		"bad name": {
			files: map[string]string{"bad-name.sql": "-- +goose Up\n-- +goose Down\n"},
			want:  "invalid migration filename",
		},
		"duplicate version": {
			files: map[string]string{
				"20260101000000_a.sql": "-- +goose Up\n-- +goose Down\n",
				"20260101000000_b.sql": "-- +goose Up\n-- +goose Down\n",
			},
			want: "duplicate migration version",
		},
		"no down": {
			files: map[string]string{"20260101000000_no_down.sql": "-- +goose Up\nSELECT 1;\n"},
			want:  "missing",
		},
		"down before up": {
			files: map[string]string{"20260101000000_flipped.sql": "-- +goose Down\n-- +goose Up\n"},
			want:  "unexpected Down section",
		},
		"unterminated block": {
			files: map[string]string{"20260101000000_open.sql": "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"},
			want:  "inside an open statement block",
		},
		"stray end": {
			files: map[string]string{"20260101000000_stray.sql": "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n"},
			want:  "StatementEnd without StatementBegin",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			for file, body := range tc.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644))
			}
			require.ErrorContains(t, ValidateDir(dir), tc.want)
		})
	}
}

func TestValidateSkipsNonSQLFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "seeds"), 0o755))
	require.NoError(t, ValidateDir(dir))
	require.Error(t, ValidateDir(""))
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	embeddedFiles, err := fs.Glob(embedded, "migrations/*.sql")
	require.NoError(t, err)
	diskFiles, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, embeddedFiles)
	require.Len(t, embeddedFiles, len(diskFiles))
}

func TestRunRequiresDB(t *testing.T) {
	require.Error(t, Run(context.Background(), nil, EmbeddedDir, "up"))
	require.Error(t, MigrateToVersion(context.Background(), nil, EmbeddedDir, "20260105120000"))
}

func TestPrepareResolvesEmbeddedDir(t *testing.T) {
	dir, err := prepare(EmbeddedDir)
	require.NoError(t, err)
	require.Equal(t, "migrations", dir)

	dir, err = prepare("some/dir")
	require.NoError(t, err)
	require.Equal(t, "some/dir", dir)

	_, err = prepare("")
	require.Error(t, err)
}
