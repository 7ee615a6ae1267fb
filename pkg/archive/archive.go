// Package archive reads and writes the engine's compressed containers.
// The new-files asset is a tar.gz addressed by relative path; backup
// archives use tar.zst for fast local compression. The format is chosen
// from the archive file extension.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Build writes the files named by relPaths (slash-separated, relative to
// root) into a compressed tar archive at archivePath. Returns the total
// uncompressed byte size of the archived files.
func Build(ctx context.Context, archivePath, root string, relPaths []string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create archive directory: %w", err)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	compressor, err := newCompressor(archivePath, out)
	if err != nil {
		return 0, err
	}

	tw := tar.NewWriter(compressor)
	var total int64

	for _, rel := range relPaths {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		n, err := addFile(tw, root, rel)
		if err != nil {
			return 0, fmt.Errorf("failed to archive %s: %w", rel, err)
		}
		total += n
	}

	if err := tw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize compression: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close archive: %w", err)
	}

	return total, nil
}

// Extract unpacks a compressed tar archive into destRoot, overwriting
// existing files in place. Entries escaping destRoot are rejected.
func Extract(ctx context.Context, archivePath, destRoot string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer in.Close()

	decompressor, err := newDecompressor(archivePath, in)
	if err != nil {
		return err
	}
	defer decompressor.Close()

	tr := tar.NewReader(decompressor)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		rel := filepath.FromSlash(header.Name)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("archive entry escapes destination: %s", header.Name)
		}
		target := filepath.Join(destRoot, rel)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", rel, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, header); err != nil {
				return fmt.Errorf("failed to extract %s: %w", rel, err)
			}
		default:
			// symlinks and specials are not part of any update payload
			return fmt.Errorf("unsupported entry type %d for %s", header.Typeflag, header.Name)
		}
	}
}

// List returns the relative paths of the regular files in an archive
func List(ctx context.Context, archivePath string) ([]string, error) {
	in, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer in.Close()

	decompressor, err := newDecompressor(archivePath, in)
	if err != nil {
		return nil, err
	}
	defer decompressor.Close()

	tr := tar.NewReader(decompressor)
	var paths []string

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		header, err := tr.Next()
		if err == io.EOF {
			return paths, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag == tar.TypeReg {
			paths = append(paths, header.Name)
		}
	}
}

// addFile appends one regular file to the tar stream
func addFile(tw *tar.Writer, root, rel string) (int64, error) {
	fullPath := filepath.Join(root, filepath.FromSlash(rel))

	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return 0, err
	}
	header.Name = rel

	if err := tw.WriteHeader(header); err != nil {
		return 0, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	n, err := io.Copy(tw, file)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// writeEntry extracts one regular file from the tar stream
func writeEntry(target string, tr *tar.Reader, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	mode := os.FileMode(header.Mode).Perm()
	if mode == 0 {
		mode = 0644
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, tr); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

// newCompressor picks the compression writer from the file extension
func newCompressor(path string, w io.Writer) (io.WriteCloser, error) {
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	case strings.HasSuffix(path, ".tar.zst"):
		return zstd.NewWriter(w)
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", filepath.Base(path))
	}
}

// newDecompressor picks the decompression reader from the file extension
func newDecompressor(path string, r io.Reader) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return gz, nil
	case strings.HasSuffix(path, ".tar.zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", filepath.Base(path))
	}
}
