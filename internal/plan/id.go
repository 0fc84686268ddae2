package plan

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// IDPrefix starts every parent run identifier.
const IDPrefix = "rr-"

// idTimeLayout is the UTC timestamp embedded in run identifiers.
const idTimeLayout = "20060102T150405Z"

// runNamespace scopes the name-based UUIDs used for run identifiers.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/roach88/roadrunner/runs"))

// IDGenerator produces parent run identifiers.
type IDGenerator interface {
	Generate(flowPath string, seed int64, at time.Time) string
}

// HashIDGenerator derives "rr-<UTC timestamp>-<hash10>" where hash10 is the
// first 10 hex digits of a SHA-1 name-based UUID over flowPath, seed and the
// timestamp. Identical inputs within the same second give the same id.
//
// Thread-safety: HashIDGenerator is stateless and safe for concurrent use.
type HashIDGenerator struct{}

// Generate returns the run identifier for the given inputs.
func (HashIDGenerator) Generate(flowPath string, seed int64, at time.Time) string {
	ts := at.UTC().Format(idTimeLayout)
	id := uuid.NewSHA1(runNamespace, []byte(flowPath+":"+strconv.FormatInt(seed, 10)+":"+ts))
	return IDPrefix + ts + "-" + hex.EncodeToString(id[:5])
}

// SubRunID returns the identifier of sub-run index under parent.
func SubRunID(parent string, index int) string {
	return fmt.Sprintf("%s-s%02d", parent, index)
}
