// Package scope turns a user's folder selection into a canonical roots value.
package scope

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive"
)

// ErrEmptySelection means the selection named nothing searchable.
var ErrEmptySelection = errors.New("no folders selected")

// ConfigError is a selection that cannot be resolved in the current setup.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return e.Msg
}

const (
	drivePrefix = "drive-"
	rootPrefix  = "root-"
)

// isAllSentinel reports ids meaning "everything".
func isAllSentinel(id string) bool {
	switch id {
	case "root", "*", "ALL":
		return true
	}
	return false
}

// Value is a canonical scope: either unrestricted, or a sorted set of
// distinct folder ids. The zero Value is unrestricted.
type Value struct {
	ids []string
}

// Unrestricted returns the scope that covers the whole drive.
func Unrestricted() Value {
	return Value{}
}

// Of returns the canonical scope for ids. An empty list yields Unrestricted;
// callers that need to distinguish an empty selection go through Resolve.
func Of(ids ...string) Value {
	if len(ids) == 0 {
		return Value{}
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return Value{ids: slices.Compact(out)}
}

// IsUnrestricted reports whether v covers the whole drive.
func (v Value) IsUnrestricted() bool {
	return len(v.ids) == 0
}

// IDs returns the sorted folder ids, or nil when unrestricted.
func (v Value) IDs() []string {
	return slices.Clone(v.ids)
}

// Contains reports whether rootID is in scope.
func (v Value) Contains(rootID string) bool {
	if v.IsUnrestricted() {
		return true
	}
	_, ok := slices.BinarySearch(v.ids, rootID)
	return ok
}

// Equal compares two canonical values.
func (v Value) Equal(o Value) bool {
	return slices.Equal(v.ids, o.ids)
}

// String renders the value for logs.
func (v Value) String() string {
	if v.IsUnrestricted() {
		return "*"
	}
	return strings.Join(v.ids, ",")
}

// MarshalJSON renders unrestricted as null and a restricted scope as a list.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsUnrestricted() {
		return []byte("null"), nil
	}
	return json.Marshal(v.ids)
}

// Normalize keeps true folder ids, dropping drive-level and root sentinel ids.
func Normalize(ids []string) []string {
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || isAllSentinel(id) ||
			strings.HasPrefix(id, drivePrefix) || strings.HasPrefix(id, rootPrefix) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Resolver canonicalizes selections against a drive's folder tree.
type Resolver struct {
	dir      drive.Directory
	pageSize int
}

// NewResolver creates a resolver that lists folders with pageSize.
func NewResolver(dir drive.Directory, pageSize int) *Resolver {
	return &Resolver{dir: dir, pageSize: drive.ClampPageSize(pageSize)}
}

// Resolve canonicalizes ids for driveID.
//
// An empty list, or one made only of "all" sentinels, is unrestricted. Root
// sentinels ("root-...") expand to the drive's top-level folders when
// nothing else was selected. A selection equal to the full top-level set
// collapses to unrestricted. A selection that leaves nothing is
// ErrEmptySelection.
func (r *Resolver) Resolve(ctx context.Context, driveID string, ids []string) (Value, error) {
	if len(ids) == 0 || allSentinels(ids) {
		return Unrestricted(), nil
	}

	folders := Normalize(ids)
	if len(folders) == 0 && hasRootSentinel(ids) {
		if driveID == "" {
			return Value{}, &ConfigError{Msg: "scope cannot be resolved without an active drive"}
		}
		var err error
		folders, err = r.expandRoots(ctx, driveID, ids)
		if err != nil {
			return Value{}, err
		}
	}
	if len(folders) == 0 {
		return Value{}, ErrEmptySelection
	}

	selected := Of(folders...)
	if driveID != "" {
		top, err := drive.TopFolders(ctx, r.dir, driveID, r.pageSize)
		if err != nil {
			// Without the top-level set the selection stays as given.
			return selected, nil
		}
		topIDs := make([]string, 0, len(top))
		for _, f := range top {
			topIDs = append(topIDs, f.ID)
		}
		if len(topIDs) > 0 && selected.Equal(Of(topIDs...)) {
			return Unrestricted(), nil
		}
	}
	return selected, nil
}

// expandRoots lists the top-level folders once per root sentinel and
// dedupes in first-seen order.
func (r *Resolver) expandRoots(ctx context.Context, driveID string, ids []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if !strings.HasPrefix(strings.TrimSpace(id), rootPrefix) {
			continue
		}
		children, err := drive.TopFolders(ctx, r.dir, driveID, r.pageSize)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if c.ID == "" || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c.ID)
		}
	}
	return out, nil
}

func allSentinels(ids []string) bool {
	for _, id := range ids {
		if !isAllSentinel(strings.TrimSpace(id)) {
			return false
		}
	}
	return true
}

func hasRootSentinel(ids []string) bool {
	for _, id := range ids {
		if strings.HasPrefix(strings.TrimSpace(id), rootPrefix) {
			return true
		}
	}
	return false
}
