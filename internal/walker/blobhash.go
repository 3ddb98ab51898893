package walker

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// BlobHash computes the Git blob hash of file content. Stored on
// file_index documents as file_commit, it is the unit of change detection:
// the reconciler compares it against the working tree without shelling out
// to Git.
func BlobHash(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d", len(content))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
