package artifact

import "fmt"

// Version is a dotted major.minor.patch build marker. Only Patch advances
// automatically, once per successful rebuild.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Baseline is the version assigned to a newly created artifact.
var Baseline = Version{Major: 1}

// NextPatch returns v with Patch incremented by one. It is the only way a
// stored version moves; see db.Rebuild.
func (v Version) NextPatch() Version {
	v.Patch++
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
