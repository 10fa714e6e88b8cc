package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidFileType = errors.New("upload: file type not allowed")
	ErrTooLarge        = errors.New("upload: file exceeds the size limit")
	ErrEmptyFile       = errors.New("upload: file has no data rows")
)

var allowedExtensions = map[string]bool{
	"csv":  true,
	"xls":  true,
	"xlsx": true,
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// File references one saved upload. The converted CSV content stays in
// memory for the lifetime of the owning session; the path survives it for
// background jobs and threshold adjustment.
type File struct {
	Name      string
	Path      string
	FileType  string
	LineCount int
	Converted []byte
}

// AllowedFile reports whether the filename carries an allow-listed extension.
func AllowedFile(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	return allowedExtensions[strings.ToLower(filename[idx+1:])]
}

// SecureFilename flattens a client-supplied name into a safe on-disk name,
// prefixed with the upload timestamp so later artifacts can be matched back
// to it by prefix.
func SecureFilename(filename string) string {
	base := filepath.Base(filename)
	base = unsafeChars.ReplaceAllString(base, "_")
	return fmt.Sprintf("%d_%s", time.Now().UnixNano(), base)
}

// Save persists an uploaded file under dir and returns its reference.
// The reader is capped at maxSize bytes.
func Save(dir, filename string, r io.Reader, maxSize int) (*File, error) {
	if !AllowedFile(filename) {
		return nil, ErrInvalidFileType
	}

	content, err := io.ReadAll(io.LimitReader(r, int64(maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("upload: failed to read file: %w", err)
	}
	if len(content) > maxSize {
		return nil, ErrTooLarge
	}

	records, err := ReadData(content)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: failed to create upload dir: %w", err)
	}

	name := SecureFilename(filename)
	path, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("upload: failed to save %s: %w", name, err)
	}

	idx := strings.LastIndex(filename, ".")
	return &File{
		Name:      name,
		Path:      path,
		FileType:  strings.ToLower(filename[idx+1:]),
		LineCount: len(records),
		Converted: content,
	}, nil
}

// TrainingPath is where a session's accumulated labels get persisted.
func TrainingPath(dir, name string) string {
	return filepath.Join(dir, name+"-training.json")
}

// SettingsPath is where a clustering job writes its learned model artifact.
func SettingsPath(dir, name string) string {
	return filepath.Join(dir, filePrefix(name)+"_settings.dedupe")
}

// FindSettings locates a previously produced settings artifact for the named
// upload by the timestamp-prefix / .dedupe-suffix convention.
func FindSettings(dir, name string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	prefix := filePrefix(name)
	var found string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), ".dedupe") {
			found = filepath.Join(dir, entry.Name())
		}
	}
	return found, found != ""
}

func filePrefix(name string) string {
	if idx := strings.Index(name, "_"); idx > 0 {
		return name[:idx]
	}
	return name
}
