package db

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

var errMigrationModified = errors.New("applied migration was modified")

var addColumnPattern = regexp.MustCompile(`(?i)^ALTER\s+TABLE\s+["` + "`" + `\[]?(\w+)["` + "`" + `\]]?\s+ADD\s+(?:COLUMN\s+)?["` + "`" + `\[]?(\w+)`)

// schemaMigration is one applied migration file.
type schemaMigration struct {
	Version   string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Checksum  string    `gorm:"not null;default:''"`
	AppliedAt time.Time `gorm:"not null"`
}

func (schemaMigration) TableName() string {
	return "schema_migrations"
}

type migration struct {
	Version  string
	Order    int
	Name     string
	SQL      string
	Checksum string
}

// applyMigrations runs the pending NNNN_name.sql files of files in numeric order, one
// transaction per file, and returns the names it ran. Editing a file after it was
// applied is an error.
func applyMigrations(database *gorm.DB, files fs.FS) ([]string, error) {
	if err := database.AutoMigrate(&schemaMigration{}); err != nil {
		return nil, fmt.Errorf("create schema_migrations table: %w", err)
	}

	available, err := loadMigrations(files)
	if err != nil {
		return nil, err
	}

	var records []schemaMigration
	if err := database.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	applied := make(map[string]schemaMigration, len(records))
	for _, record := range records {
		applied[record.Version] = record
	}

	var ran []string
	for _, next := range available {
		if record, done := applied[next.Version]; done {
			if record.Checksum != "" && record.Checksum != next.Checksum {
				return ran, fmt.Errorf("%w: %s", errMigrationModified, next.Name)
			}
			continue
		}
		if err := runMigration(database, next); err != nil {
			return ran, err
		}
		ran = append(ran, next.Name)
	}
	return ran, nil
}

func loadMigrations(files fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[string]string, len(entries))
	loaded := make([]migration, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		version, order, ok := parseMigrationName(name)
		if entry.IsDir() || !ok {
			continue
		}
		if previous, duplicate := byVersion[version]; duplicate {
			return nil, fmt.Errorf("duplicate migration version %s in %s and %s", version, previous, name)
		}
		byVersion[version] = name

		body, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		sum := sha256.Sum256(body)
		loaded = append(loaded, migration{
			Version:  version,
			Order:    order,
			Name:     name,
			SQL:      string(body),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	slices.SortFunc(loaded, func(left, right migration) int {
		return cmp.Or(cmp.Compare(left.Order, right.Order), strings.Compare(left.Name, right.Name))
	})
	return loaded, nil
}

// parseMigrationName accepts names like 0002_mood_entries.sql.
func parseMigrationName(name string) (string, int, bool) {
	stem, isSQL := strings.CutSuffix(name, ".sql")
	version, _, found := strings.Cut(stem, "_")
	if !isSQL || !found || version == "" {
		return "", 0, false
	}
	for _, char := range version {
		if char < '0' || char > '9' {
			return "", 0, false
		}
	}
	order, err := strconv.Atoi(version)
	if err != nil {
		return "", 0, false
	}
	return version, order, true
}

func runMigration(database *gorm.DB, next migration) error {
	statements := splitSQLStatements(next.SQL)
	if len(statements) == 0 {
		return fmt.Errorf("migration %s has no SQL statements", next.Name)
	}

	return database.Transaction(func(tx *gorm.DB) error {
		for _, statement := range statements {
			exists, err := addsExistingColumn(tx, statement)
			if err != nil {
				return fmt.Errorf("inspect migration %s: %w", next.Name, err)
			}
			if exists {
				continue
			}
			if err := tx.Exec(statement).Error; err != nil {
				return fmt.Errorf("execute migration %s statement %q: %w", next.Name, statement, err)
			}
		}

		record := schemaMigration{
			Version:   next.Version,
			Name:      next.Name,
			Checksum:  next.Checksum,
			AppliedAt: time.Now().UTC(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("record migration %s: %w", next.Name, err)
		}
		return nil
	})
}

// splitSQLStatements drops "--" comment lines and splits on semicolons.
func splitSQLStatements(sqlText string) []string {
	var body strings.Builder
	for line := range strings.Lines(sqlText) {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		body.WriteString(line)
	}

	var statements []string
	for part := range strings.SplitSeq(body.String(), ";") {
		if statement := strings.TrimSpace(part); statement != "" {
			statements = append(statements, statement)
		}
	}
	return statements
}

// addsExistingColumn makes ALTER TABLE ... ADD COLUMN re-runnable, which sqlite does not support natively.
func addsExistingColumn(tx *gorm.DB, statement string) (bool, error) {
	matches := addColumnPattern.FindStringSubmatch(strings.TrimSpace(statement))
	if matches == nil {
		return false, nil
	}

	var count int64
	if err := tx.Raw(
		`SELECT count(*) FROM pragma_table_info(?) WHERE lower(name) = lower(?)`,
		matches[1], matches[2],
	).Scan(&count).Error; err != nil {
		return false, fmt.Errorf("inspect columns of %s: %w", matches[1], err)
	}
	return count > 0, nil
}
