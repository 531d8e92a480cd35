// Package secdesc builds the fixed security descriptor returned by
// get_security (spec.md §4.G, §6): owner and group set to the world
// SID, with a single access rule granting ReadAndExecute to that SID.
package secdesc

// Rights is a bitmask of the rights an access rule grants.
type Rights uint32

const (
	ReadData Rights = 1 << iota
	Execute
)

// ReadAndExecute is the only right this volume ever grants.
const ReadAndExecute = ReadData | Execute

// WorldSID is the security identifier representing "everyone" in the
// host's access-control model (glossary: "World SID").
const WorldSID = "S-1-1-0"

// AccessRule is one entry of a Descriptor's discretionary list.
type AccessRule struct {
	SID    string
	Rights Rights
}

// Descriptor is the fixed, read-only security descriptor handed back
// for every path on the volume.
type Descriptor struct {
	OwnerSID string
	GroupSID string
	Rules    []AccessRule
}

// Fixed is the single descriptor value every get_security call
// returns; it never varies by path, since the volume is read-only and
// uniformly world-readable.
var Fixed = Descriptor{
	OwnerSID: WorldSID,
	GroupSID: WorldSID,
	Rules:    []AccessRule{{SID: WorldSID, Rights: ReadAndExecute}},
}
