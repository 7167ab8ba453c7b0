package migrate

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	versionLayout   = "20060102150405"
	directivePrefix = "-- +goose "
)

var (
	fileNameRe     = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	nameSanitizeRe = regexp.MustCompile(`[^a-z0-9]+`)
)

var now = time.Now

func sanitizeName(name string) string {
	return strings.Trim(nameSanitizeRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// CreateSQLMigration writes <dir>/<UTC timestamp>_<name>.sql with empty Up
// and Down sections and returns its path. Existing files are never replaced.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	full := filepath.Join(dir, now().UTC().Format(versionLayout)+"_"+safe+".sql")
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	body := "-- +goose Up\n-- +goose StatementBegin\n-- " + safe + "\n-- +goose StatementEnd\n\n" +
		"-- +goose Down\n-- +goose StatementBegin\n-- rollback " + safe + "\n-- +goose StatementEnd\n"
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write migration %q: %w", full, err)
	}
	return full, f.Close()
}

// ValidateDir checks the migrations in an on-disk directory.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateFS checks every .sql file under root: names carry a unique 14
// digit version and each file has balanced goose annotations with an Up
// section followed by a Down section.
func ValidateFS(fsys fs.FS, root string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("read migrations %q: %w", root, err)
	}
	versions := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (want YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := checkAnnotations(body); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func checkAnnotations(body []byte) error {
	var section string
	open := false
	sc := bufio.NewScanner(bytes.NewReader(body))
	for line := 1; sc.Scan(); line++ {
		directive, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), directivePrefix)
		if !ok {
			continue
		}
		switch directive = strings.TrimSpace(directive); directive {
		case "Up", "Down":
			if open {
				return fmt.Errorf("line %d: %s inside an open statement block", line, directive)
			}
			if (directive == "Up" && section != "") || (directive == "Down" && section != "Up") {
				return fmt.Errorf("line %d: unexpected %s section", line, directive)
			}
			section = directive
		case "StatementBegin":
			if open || section == "" {
				return fmt.Errorf("line %d: misplaced StatementBegin", line)
			}
			open = true
		case "StatementEnd":
			if !open {
				return fmt.Errorf("line %d: StatementEnd without StatementBegin", line)
			}
			open = false
		}
	}
	switch {
	case sc.Err() != nil:
		return sc.Err()
	case open:
		return errors.New("unterminated statement block")
	case section != "Down":
		return errors.New(`missing "-- +goose Up" or "-- +goose Down" section`)
	}
	return nil
}
