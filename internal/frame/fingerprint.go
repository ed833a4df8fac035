package frame

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/1broseidon/replybot/internal/logging"
)

// Fingerprint identifies a frame by its pixels. Any pixel difference,
// including a blinking cursor, yields a different fingerprint.
type Fingerprint string

// Short is the abbreviated form used in logs.
func (fp Fingerprint) Short() string {
	return logging.ShortHash(string(fp))
}

// Compute returns the BLAKE2b-256 digest of the frame's dimensions and raw
// pixels, hex encoded.
func Compute(f *Frame) Fingerprint {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	var dims [16]byte
	binary.LittleEndian.PutUint64(dims[0:8], uint64(f.Width))
	binary.LittleEndian.PutUint64(dims[8:16], uint64(f.Height))
	h.Write(dims[:])
	h.Write(f.Pix)
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
