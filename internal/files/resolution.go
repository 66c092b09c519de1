// Package files turns declared pattern groups into concrete, deduplicated
// file lists.
package files

// Policy selects the candidate file universe of a resolution.
type Policy int

const (
	// FullScan makes every file matching a declared pattern eligible.
	FullScan Policy = iota

	// ChangedOnly restricts candidates to files that differ from the
	// baseline plus untracked files.
	ChangedOnly
)

func (p Policy) String() string {
	switch p {
	case FullScan:
		return "full-scan"
	case ChangedOnly:
		return "changed-only"
	default:
		return "unknown"
	}
}

// PolicyFor maps a changed-only flag to a Policy.
func PolicyFor(changedOnly bool) Policy {
	if changedOnly {
		return ChangedOnly
	}
	return FullScan
}

// Resolution maps pattern group names to their resolved file paths. It is
// immutable once built; accessors return copies.
type Resolution struct {
	policy Policy
	order  []string
	groups map[string][]string
}

func newResolution(policy Policy) *Resolution {
	return &Resolution{
		policy: policy,
		groups: make(map[string][]string),
	}
}

func (r *Resolution) addGroup(name string) {
	r.order = append(r.order, name)
	r.groups[name] = []string{}
}

func (r *Resolution) add(group, path string) {
	r.groups[group] = append(r.groups[group], path)
}

// Policy returns the policy the resolution was built with.
func (r Resolution) Policy() Policy { return r.policy }

// Groups returns the group names in declaration order.
func (r Resolution) Groups() []string {
	return append([]string(nil), r.order...)
}

// Files returns the files claimed by group, in discovery order.
func (r Resolution) Files(group string) []string {
	return append([]string{}, r.groups[group]...)
}

// Gather concatenates the files of the given groups in the given order.
// Unknown groups contribute nothing.
func (r Resolution) Gather(groups ...string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, r.groups[g]...)
	}
	return out
}

// Len returns the total number of resolved files across all groups.
func (r Resolution) Len() int {
	n := 0
	for _, files := range r.groups {
		n += len(files)
	}
	return n
}
