// Package cache implements Arcana's content-addressed on-disk cache:
// a profile-keyed binary file of fixed-size file records, plus
// per-instruction generated scripts, both rooted under .arcana/.
package cache

import (
	"crypto/md5"
	"os"
	"path/filepath"

	"github.com/arcanabuilder/arcana/internal/arcerr"
)

const (
	headerSize     = 16
	recordSize     = 32
	pathHashSize   = 16
	contentMD5Size = 16
)

// record is the in-memory mirror of one 32-byte on-disk slot.
type record struct {
	offset  int64
	content [contentMD5Size]byte
}

// BinFile is the profile-keyed binary cache file:
// bytes [0,16) hold MD5(profile); the remainder is a sequence of 32-byte
// { path_md5[16], content_md5[16] } records, looked up by MD5(path) in
// an in-memory index. A zeroed slot is a tombstone.
type BinFile struct {
	path     string
	profile  string
	file     *os.File
	index    map[[pathHashSize]byte]*record
	nextSlot int64
}

// defaultCacheDir is the cache subdirectory name used when `.arcana.toml`
// sets no `cache_dir` override.
const defaultCacheDir = ".arcana"

// dirName resolves the cache subdirectory name: cacheDir if the project
// overrides it via `cache_dir`, defaultCacheDir otherwise.
func dirName(cacheDir string) string {
	if cacheDir == "" {
		return defaultCacheDir
	}
	return cacheDir
}

// Path returns the `<cacheDir>/<MD5(profile)>` file path for profile
// under root, where cacheDir defaults to ".arcana" when empty.
func Path(root, profile, cacheDir string) string {
	sum := md5.Sum([]byte(profile))
	return filepath.Join(root, dirName(cacheDir), hexString(sum[:]))
}

// Open opens (creating if absent) the binary cache file for profile
// under root. If the file exists but its stored profile hash doesn't
// match, it is treated as empty and rewritten with the new header.
func Open(root, profile, cacheDir string) (*BinFile, error) {
	path := Path(root, profile, cacheDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &arcerr.IOError{Path: path, Message: "creating cache directory", Cause: err}
	}

	profileHash := md5.Sum([]byte(profile))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &arcerr.IOError{Path: path, Message: "opening cache file", Cause: err}
	}

	bf := &BinFile{path: path, profile: profile, file: f, index: map[[pathHashSize]byte]*record{}, nextSlot: headerSize}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &arcerr.IOError{Path: path, Message: "stating cache file", Cause: err}
	}

	if info.Size() < headerSize {
		if err := bf.writeHeader(profileHash); err != nil {
			f.Close()
			return nil, err
		}
		return bf, nil
	}

	stored := make([]byte, headerSize)
	if _, err := f.ReadAt(stored, 0); err != nil {
		f.Close()
		return nil, &arcerr.IOError{Path: path, Message: "reading cache header", Cause: err}
	}
	if !bytesEqual(stored, profileHash[:]) {
		if err := bf.writeHeader(profileHash); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Truncate(headerSize); err != nil {
			f.Close()
			return nil, &arcerr.IOError{Path: path, Message: "truncating stale cache", Cause: err}
		}
		return bf, nil
	}

	if err := bf.loadRecords(info.Size()); err != nil {
		f.Close()
		return nil, err
	}
	return bf, nil
}

func (b *BinFile) writeHeader(profileHash [16]byte) error {
	if _, err := b.file.WriteAt(profileHash[:], 0); err != nil {
		return &arcerr.IOError{Path: b.path, Message: "writing cache header", Cause: err}
	}
	return nil
}

func (b *BinFile) loadRecords(size int64) error {
	n := (size - headerSize) / recordSize
	buf := make([]byte, recordSize)
	for i := int64(0); i < n; i++ {
		offset := headerSize + i*recordSize
		if _, err := b.file.ReadAt(buf, offset); err != nil {
			return &arcerr.IOError{Path: b.path, Message: "reading cache record", Cause: err}
		}
		if isZero(buf) {
			continue
		}
		var key [pathHashSize]byte
		copy(key[:], buf[:pathHashSize])
		var content [contentMD5Size]byte
		copy(content[:], buf[pathHashSize:])
		b.index[key] = &record{offset: offset, content: content}
	}
	b.nextSlot = headerSize + n*recordSize
	return nil
}

// HasFileChanged reports whether path's current contents differ from
// the last-recorded content hash, recording the new hash either way:
// a call after a genuine change returns true, a second call with the
// same path and unchanged bytes returns false.
func (b *BinFile) HasFileChanged(path string) (bool, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return false, &arcerr.IOError{Path: path, Message: "reading tracked file", Cause: err}
	}
	pathKey := md5.Sum([]byte(path))
	contentHash := md5.Sum(contents)

	existing, ok := b.index[pathKey]
	if ok && existing.content == contentHash {
		return false, nil
	}

	if ok {
		existing.content = contentHash
		if err := b.writeRecord(existing.offset, pathKey, contentHash); err != nil {
			return false, err
		}
		return true, nil
	}

	offset := b.nextSlot
	b.nextSlot += recordSize
	rec := &record{offset: offset, content: contentHash}
	b.index[pathKey] = rec
	if err := b.writeRecord(offset, pathKey, contentHash); err != nil {
		return false, err
	}
	return true, nil
}

func (b *BinFile) writeRecord(offset int64, pathKey [pathHashSize]byte, content [contentMD5Size]byte) error {
	buf := make([]byte, recordSize)
	copy(buf[:pathHashSize], pathKey[:])
	copy(buf[pathHashSize:], content[:])
	if _, err := b.file.WriteAt(buf, offset); err != nil {
		return &arcerr.IOError{Path: b.path, Message: "writing cache record", Cause: err}
	}
	return nil
}

// ClearCache zeroes the on-disk slot for each path in keys and drops it
// from the in-memory index.
func (b *BinFile) ClearCache(keys []string) error {
	zero := make([]byte, recordSize)
	for _, path := range keys {
		pathKey := md5.Sum([]byte(path))
		rec, ok := b.index[pathKey]
		if !ok {
			continue
		}
		if _, err := b.file.WriteAt(zero, rec.offset); err != nil {
			return &arcerr.IOError{Path: b.path, Message: "clearing cache record", Cause: err}
		}
		delete(b.index, pathKey)
	}
	return nil
}

// Close releases the underlying file handle.
func (b *BinFile) Close() error {
	return b.file.Close()
}

// WriteScript writes content to `<cacheDir>/script/<MD5(jobName)><index><ext>`
// under root, only touching the file on disk if it is new or its
// contents differ, and returns the script's path.
func WriteScript(root, jobName string, index int, ext, content, cacheDir string) (string, error) {
	sum := md5.Sum([]byte(jobName))
	name := hexString(sum[:]) + itoa(index) + ext
	path := filepath.Join(root, dirName(cacheDir), "script", name)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &arcerr.IOError{Path: path, Message: "creating script directory", Cause: err}
	}

	existing, err := os.ReadFile(path)
	if err == nil {
		existingSum := md5.Sum(existing)
		newSum := md5.Sum([]byte(content))
		if existingSum == newSum {
			return path, nil
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return "", &arcerr.IOError{Path: path, Message: "writing script", Cause: err}
	}
	return path, nil
}

// Flush removes the entire cache directory under root, the
// whole-directory clear behind the `--flush-cache` flag: the next Open
// starts from empty.
func Flush(root, cacheDir string) error {
	path := filepath.Join(root, dirName(cacheDir))
	if err := os.RemoveAll(path); err != nil {
		return &arcerr.IOError{Path: path, Message: "flushing cache", Cause: err}
	}
	return nil
}

func hexString(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
