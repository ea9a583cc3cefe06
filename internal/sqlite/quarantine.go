package sqlite

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// sidecarSuffixes are the files SQLite keeps next to a WAL-mode database.
var sidecarSuffixes = []string{"-wal", "-shm"}

// quarantineStamp is the timestamp layout used in quarantine file names.
// Nanoseconds keep two quarantines in the same second apart.
const quarantineStamp = "20060102T150405.000000000Z"

// QuarantineResult lists where the pieces of a quarantined database went.
type QuarantineResult struct {
	BackupPath    string
	PreservedPath string
	CorruptedPath string
	Size          int64
	Sidecars      []string // Sidecar suffixes that were moved along with the file.
}

// ErrQuarantineAborted is returned when the backup copy of a corrupted file
// does not match the original. The original is left in place.
var ErrQuarantineAborted = errors.New("quarantine aborted: backup copy does not match original")

// Quarantine moves a corrupted database out of the way so a fresh file can be
// created at dbPath. In order it:
//
//  1. copies the file into backupDir and verifies the copy byte for byte,
//  2. writes a second preserved copy beside the original,
//  3. renames the original (and any -wal/-shm files) to a .corrupted name.
//
// If the verified backup cannot be produced nothing is renamed and an error
// wrapping ErrQuarantineAborted is returned.
func Quarantine(dbPath, backupDir string, now time.Time, logger zerolog.Logger) (*QuarantineResult, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dbPath, err)
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup dir %s: %w", backupDir, err)
	}

	stamp := now.UTC().Format(quarantineStamp)
	base := filepath.Base(dbPath)
	res := &QuarantineResult{
		BackupPath:    filepath.Join(backupDir, fmt.Sprintf("%s.%s.bak", base, stamp)),
		PreservedPath: fmt.Sprintf("%s.preserved-%s", dbPath, stamp),
		CorruptedPath: fmt.Sprintf("%s.corrupted-%s", dbPath, stamp),
		Size:          info.Size(),
	}

	var sidecars []string
	for _, suffix := range sidecarSuffixes {
		if _, err := os.Stat(dbPath + suffix); err == nil {
			sidecars = append(sidecars, suffix)
		}
	}

	for _, suffix := range append([]string{""}, sidecars...) {
		if err := copyVerified(dbPath+suffix, res.BackupPath+suffix); err != nil {
			quarantines.WithLabelValues("aborted").Inc()
			return nil, fmt.Errorf("%w: %v", ErrQuarantineAborted, err)
		}
	}
	for _, suffix := range append([]string{""}, sidecars...) {
		if err := copyVerified(dbPath+suffix, res.PreservedPath+suffix); err != nil {
			quarantines.WithLabelValues("aborted").Inc()
			return nil, fmt.Errorf("preserving %s: %w", dbPath+suffix, err)
		}
	}

	if err := os.Rename(dbPath, res.CorruptedPath); err != nil {
		quarantines.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("renaming %s: %w", dbPath, err)
	}
	for _, suffix := range sidecars {
		if err := os.Rename(dbPath+suffix, res.CorruptedPath+suffix); err != nil {
			quarantines.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("renaming %s: %w", dbPath+suffix, err)
		}
	}
	res.Sidecars = sidecars

	quarantines.WithLabelValues("ok").Inc()
	logger.Warn().
		Str("path", dbPath).
		Str("size", humanize.Bytes(uint64(res.Size))).
		Str("backup", res.BackupPath).
		Str("preserved", res.PreservedPath).
		Str("corrupted", res.CorruptedPath).
		Strs("sidecars", sidecars).
		Msg("quarantined corrupted database")
	return res, nil
}

// copyVerified copies src to dst, syncs it, then reopens dst read-only and
// checks that its size and SHA-256 match what was read from src.
func copyVerified(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	h := sha256.New()
	n, err := io.Copy(out, io.TeeReader(in, h))
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return probeCopy(dst, n, h.Sum(nil))
}

func probeCopy(path string, size int64, sum []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reopening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return fmt.Errorf("reading back %s: %w", path, err)
	}
	if n != size {
		return fmt.Errorf("%s: size %d, want %d", path, n, size)
	}
	if !bytes.Equal(h.Sum(nil), sum) {
		return fmt.Errorf("%s: checksum mismatch", path)
	}
	return nil
}
