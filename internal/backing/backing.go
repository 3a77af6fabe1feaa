// Package backing provides the byte-oriented resources that hold the
// repository document: a local file, a SQLite database, or an S3 object.
package backing

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotExist is returned by Read when the backing resource has never been
// written.
var ErrNotExist = errors.New("backing resource does not exist")

// Backing reads and writes the whole repository document.
type Backing interface {
	// Read returns the stored document, or ErrNotExist.
	Read() ([]byte, error)

	// Write replaces the stored document.
	Write(data []byte) error

	// Name describes the resource for logs and errors.
	Name() string
}

// Driver names.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverS3     = "s3"
)

// Config selects and parameterizes a backing.
type Config struct {
	Driver   string
	Path     string // file and sqlite drivers
	Bucket   string // s3 driver
	Key      string // s3 object key
	Region   string
	Endpoint string
}

// Open constructs the backing named by cfg.Driver. An empty driver selects
// the file driver.
func Open(ctx context.Context, cfg Config) (Backing, error) {
	switch cfg.Driver {
	case "", DriverFile:
		return NewFile(cfg.Path)
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:   cfg.Bucket,
			Key:      cfg.Key,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		})
	default:
		return nil, fmt.Errorf("unknown backing driver %q", cfg.Driver)
	}
}
