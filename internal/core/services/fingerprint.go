package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xingh/docsray-mcp-sub001/internal/core/domain"
)

// identityHashCap bounds full-content hashing. Files above the cap are
// fingerprinted by (path, size, mtime) instead, a conservative approximation
// that only changes when the file could have changed.
const identityHashCap = 32 << 20

// sniffLen is how many leading bytes format detection may inspect.
const sniffLen = 512

// ResolveDocument stats and fingerprints the file at path, producing the
// Document value that drives provider selection and cache partitioning.
func ResolveDocument(path string) (domain.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return domain.Document{}, fmt.Errorf("stat document: %w", err)
	}
	if !info.Mode().IsRegular() {
		return domain.Document{}, fmt.Errorf("%w: not a regular file: %s", domain.ErrUnsupportedContent, abs)
	}

	f, err := os.Open(abs)
	if err != nil {
		return domain.Document{}, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return domain.Document{}, fmt.Errorf("read document head: %w", err)
	}
	head = head[:n]

	identity, err := fingerprint(f, abs, info)
	if err != nil {
		return domain.Document{}, err
	}

	return domain.Document{
		Path:     abs,
		Identity: identity,
		Format:   domain.DetectFormat(abs, head),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// fingerprint hashes the full content for files up to identityHashCap;
// larger files hash (path, size, mtime). The reader is positioned after the
// sniff read, so rewind first.
func fingerprint(f *os.File, abs string, info os.FileInfo) (domain.Identity, error) {
	h := sha256.New()
	if info.Size() <= identityHashCap {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("rewind document: %w", err)
		}
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("hash document: %w", err)
		}
	} else {
		fmt.Fprintf(h, "%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano())
	}
	return domain.Identity(hex.EncodeToString(h.Sum(nil))), nil
}
