package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

	// destructive statements are only allowed in the Down section.
	destructiveRe = regexp.MustCompile(`(?i)\b(DROP\s+(TABLE|INDEX|COLUMN)|DELETE\s+FROM|TRUNCATE)\b`)
)

// ValidateDir validates migration filenames and SQL headers under dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(SourceFS(dir))
}

// ValidateFS checks naming, uniqueness, goose headers and that every Up
// section is additive.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]string{} // version -> filename

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}

		version := m[1]
		if prev, ok := seen[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read file %q: %w", name, err)
		}

		txt := string(b)
		upIdx := strings.Index(txt, "-- +goose Up")
		downIdx := strings.Index(txt, "-- +goose Down")
		if upIdx < 0 {
			return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
		}
		if downIdx < 0 {
			return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
		}
		if downIdx < upIdx {
			return fmt.Errorf("migration %q has Down before Up", name)
		}
		if loc := destructiveRe.FindStringIndex(txt[upIdx:downIdx]); loc != nil {
			return fmt.Errorf("migration %q is not additive: %q in Up section", name, txt[upIdx+loc[0]:upIdx+loc[1]])
		}
	}

	return nil
}
