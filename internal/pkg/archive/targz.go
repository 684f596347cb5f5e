// Package archive provides the extraction capability consumed by the
// installer.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrUnsafePath indicates an archive member would escape the target
// directory.
var ErrUnsafePath = errors.New("archive member path escapes target directory")

// Extractor unpacks a distributable package into a directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath string, targetDir string) error
}

// TarGzExtractor extracts gzip-compressed tarballs.
type TarGzExtractor struct {
	fs afero.Fs
}

// NewTarGzExtractor builds an extractor over the given filesystem.
func NewTarGzExtractor(fs afero.Fs) *TarGzExtractor {
	return &TarGzExtractor{fs: fs}
}

// Extract unpacks the archive at archivePath into targetDir. Members that
// would resolve outside targetDir fail the extraction.
func (extractor *TarGzExtractor) Extract(ctx context.Context, archivePath string, targetDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	archiveFile, err := extractor.fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		_ = archiveFile.Close()
	}()

	uncompressed, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer func() {
		_ = uncompressed.Close()
	}()

	if err := extractor.fs.MkdirAll(targetDir, 0o750); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	tarReader := tar.NewReader(uncompressed)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive entry: %w", err)
		}

		if err := extractor.place(header, tarReader, targetDir); err != nil {
			return err
		}
	}
}

func (extractor *TarGzExtractor) place(header *tar.Header, reader io.Reader, targetDir string) error {
	targetPath := filepath.Join(targetDir, filepath.Clean(header.Name))
	if !strings.HasPrefix(filepath.Clean(targetPath)+string(filepath.Separator), filepath.Clean(targetDir)+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, header.Name)
	}

	switch header.Typeflag {
	case tar.TypeDir:
		if err := extractor.fs.MkdirAll(targetPath, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", targetPath, err)
		}
	case tar.TypeReg:
		if err := extractor.fs.MkdirAll(filepath.Dir(targetPath), 0o750); err != nil {
			return fmt.Errorf("create parent directory for %s: %w", targetPath, err)
		}

		outFile, err := extractor.fs.Create(targetPath)
		if err != nil {
			return fmt.Errorf("create file %s: %w", targetPath, err)
		}

		if _, err := io.Copy(outFile, reader); err != nil {
			_ = outFile.Close()
			return fmt.Errorf("write file %s: %w", targetPath, err)
		}

		if err := outFile.Close(); err != nil {
			return fmt.Errorf("close file %s: %w", targetPath, err)
		}

		if err := extractor.fs.Chmod(targetPath, os.FileMode(header.Mode)&0o777); err != nil {
			return fmt.Errorf("chmod file %s: %w", targetPath, err)
		}
	}

	return nil
}
