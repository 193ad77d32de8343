package qart

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// NewScratchDir creates <root>/tmp/<uuid>. The random name keeps concurrent
// requests from sharing a directory.
func NewScratchDir(root string) (string, error) {
	dir := filepath.Join(root, "tmp", uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return dir, nil
}

// RemoveScratchDir deletes dir if it still exists.
func RemoveScratchDir(dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return os.RemoveAll(dir)
}

// Unpack extracts a tar archive (optionally gzip-compressed) into dest.
// Entries that would land outside dest are rejected. Only directories and
// regular files are materialised.
func Unpack(r io.Reader, dest string) error {
	br := bufio.NewReader(r)

	var src io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	tr := tar.NewReader(src)
	root := filepath.Clean(dest)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		target := filepath.Join(root, filepath.FromSlash(header.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			mode := os.FileMode(header.Mode).Perm() | 0o600
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("failed to extract file: %w", err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to extract file: %w", err)
			}

		default:
			// links and devices are not part of a program bundle
		}
	}
}

// walkFiles calls fn for every regular file under dir with its slash-separated
// path relative to dir.
func walkFiles(dir string, fn func(rel string, path string, info fs.FileInfo) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), path, info)
	})
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// PackTar writes the regular files under dir as an uncompressed tar.
func PackTar(dir string, w io.Writer) error {
	tw := tar.NewWriter(w)
	err := walkFiles(dir, func(rel, path string, info fs.FileInfo) error {
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = rel
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		return copyFile(tw, path)
	})
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", dir, err)
	}
	return tw.Close()
}

// PackZip writes the regular files under dir as a zip with paths relative to dir.
func PackZip(dir string, w io.Writer) error {
	zw := zip.NewWriter(w)
	err := walkFiles(dir, func(rel, path string, info fs.FileInfo) error {
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = rel
		header.Method = zip.Deflate
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		return copyFile(fw, path)
	})
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", dir, err)
	}
	return zw.Close()
}
