package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/MOYARU/vigil/internal/failure"
)

// Sum returns the lowercase hex SHA-256 of b. The reputation store keys files by it.
func Sum(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// FromReader hashes everything r yields.
func FromReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", failure.Wrap(failure.ErrInputRead, "fingerprint", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FromFile hashes the file at path and reports its size.
func FromFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, failure.Wrap(failure.ErrInputRead, "fingerprint", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, failure.Wrap(failure.ErrInputRead, "fingerprint", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
