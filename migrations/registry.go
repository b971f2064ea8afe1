// Package migrations exposes the SQL schema for the integration event log
// and the form settings snapshots, split per dialect.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strconv"
	"strings"

	integrations "github.com/goliatone/go-form-integrations"
	persistence "github.com/goliatone/go-persistence-bun"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultSourceLabel = "go-form-integrations"

	treeRoot = "data/sql/migrations"
)

// dialectDirs maps each supported dialect to its directory below treeRoot.
var dialectDirs = map[string]string{
	DialectPostgres: ".",
	DialectSQLite:   "sqlite",
}

// Migration is one versioned up/down pair.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// FilesystemSpec is the migration tree for a single dialect.
type FilesystemSpec struct {
	Dialect    string
	Path       string
	FS         fs.FS
	Migrations []Migration
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// WithValidationTargets limits registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if next := normalizeDialects(targets); len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

// Filesystems resolves the per-dialect trees from the embedded schema, or
// from sources[0] when given. Every tree must hold complete up/down pairs.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := integrations.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}
	base, err := fs.Sub(root, treeRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: %s not found: %w", treeRoot, err)
	}

	dialects := make([]string, 0, len(dialectDirs))
	for dialect := range dialectDirs {
		dialects = append(dialects, dialect)
	}
	sort.Strings(dialects)

	specs := make([]FilesystemSpec, 0, len(dialects))
	for _, dialect := range dialects {
		dir := dialectDirs[dialect]
		sub, subErr := fs.Sub(base, dir)
		if subErr != nil {
			return nil, fmt.Errorf("migrations: resolve %s tree: %w", dialect, subErr)
		}
		list, listErr := List(sub)
		if listErr != nil {
			return nil, fmt.Errorf("migrations: %s: %w", dialect, listErr)
		}
		specs = append(specs, FilesystemSpec{
			Dialect:    dialect,
			Path:       path.Join(treeRoot, dir),
			FS:         sub,
			Migrations: list,
		})
	}
	return specs, nil
}

// List reads the top level of fsys and pairs NNNNN_name.up.sql files with
// their .down.sql counterparts, ordered by version.
func List(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	byVersion := map[int]*Migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file := entry.Name()
		stem, direction, ok := splitMigrationName(file)
		if !ok {
			continue
		}
		version, name, ok := parseStem(stem)
		if !ok {
			return nil, fmt.Errorf("malformed migration file name %q", file)
		}
		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("version %d is used by %q and %q", version, m.Name, name)
		}
		if direction == "up" {
			m.Up = file
		} else {
			m.Down = file
		}
	}
	if len(byVersion) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %05d_%s is missing its up or down file", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func splitMigrationName(file string) (stem, direction string, ok bool) {
	for _, dir := range []string{"up", "down"} {
		suffix := "." + dir + ".sql"
		if strings.HasSuffix(file, suffix) {
			return strings.TrimSuffix(file, suffix), dir, true
		}
	}
	return "", "", false
}

func parseStem(stem string) (int, string, bool) {
	prefix, name, found := strings.Cut(stem, "_")
	if !found || name == "" {
		return 0, "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", false
	}
	return version, name, true
}

// Register hands every targeted dialect tree to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       DefaultSourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	specs, err := Filesystems()
	if err != nil {
		return reg, err
	}
	for _, spec := range specs {
		if slices.Contains(reg.ValidationTargets, spec.Dialect) {
			reg.Filesystems = append(reg.Filesystems, spec)
		}
	}
	if len(reg.Filesystems) == 0 {
		return reg, fmt.Errorf("migrations: no schema for targets %v", reg.ValidationTargets)
	}

	for _, spec := range reg.Filesystems {
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

// Apply registers the schema for dialect on client and migrates.
func Apply(ctx context.Context, client *persistence.Client, dialect string, opts ...Option) error {
	if client == nil {
		return fmt.Errorf("migrations: persistence client is required")
	}
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	if _, ok := dialectDirs[dialect]; !ok {
		return fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	opts = append(opts, WithValidationTargets(dialect))
	_, err := Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, opts...)
	if err != nil {
		return err
	}
	return client.Migrate(ctx)
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" || slices.Contains(out, value) {
			continue
		}
		out = append(out, value)
	}
	return out
}
