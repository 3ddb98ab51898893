package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// pointNamespace seeds UUIDv5 derivation of Qdrant point ids from document
// ids. Document ids are the canonical cross-reference; the UUID form exists
// only because the store requires UUID point keys.
var pointNamespace = uuid.MustParse("8f2c1d4e-9b3a-4c5d-8e6f-7a1b2c3d4e5f")

// RepoDocID returns the id of the repo_summary document.
func RepoDocID(tenant, repo string) string {
	return docID(tenant, repo, DocTypeRepoSummary, repo)
}

// ModuleDocID returns the id of a module_summary document. The repository
// root folder uses the empty path.
func ModuleDocID(tenant, repo, path string) string {
	return docID(tenant, repo, DocTypeModuleSummary, path)
}

// FileDocID returns the id of a file_index document.
func FileDocID(tenant, repo, path string) string {
	return docID(tenant, repo, DocTypeFileIndex, path)
}

// SymbolDocID returns the id of a symbol_index document. name is the
// canonical symbol name: "Class.method" for methods, the bare name otherwise.
func SymbolDocID(tenant, repo, path, name string) string {
	return docID(tenant, repo, DocTypeSymbolIndex, path+"::"+name)
}

func docID(tenant, repo string, t DocType, key string) string {
	return fmt.Sprintf("%s:%s:%s:%s", tenant, repo, t, key)
}

// CanonicalSymbolName builds the stable symbol name used in ids and
// documents: methods are qualified by their class.
func CanonicalSymbolName(name, parentClass string) string {
	if parentClass != "" {
		return parentClass + "." + name
	}
	return name
}

// PointID derives the deterministic UUID point key for a document id.
// Re-ingestion of the same document id always maps to the same point.
func PointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

// SourceHash is the content hash of a raw source slice (symbols and files).
func SourceHash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// AggregateHash is the content hash of a module or repo document: the
// ordered list of child ids and their summaries. Callers pass children in
// their canonical (lexicographic-by-path) order.
func AggregateHash(childIDs, childSummaries []string) string {
	h := sha256.New()
	for i, id := range childIDs {
		h.Write([]byte(id))
		h.Write([]byte{0})
		if i < len(childSummaries) {
			h.Write([]byte(childSummaries[i]))
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ParseDocID splits a document id into its four segments. The key segment
// may itself contain colons (repo ids like "owner/repo" do not, but symbol
// keys embed "::"), so only the first three separators are significant.
func ParseDocID(id string) (tenant, repo string, t DocType, key string, ok bool) {
	parts := strings.SplitN(id, ":", 4)
	if len(parts) != 4 {
		return "", "", "", "", false
	}
	return parts[0], parts[1], DocType(parts[2]), parts[3], true
}
