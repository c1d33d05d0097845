package catalog

import "strings"

// Verb stems that mark a method as risky. Matched case-insensitively as
// substrings of the last name segment, mirroring how SDKs name their write
// paths (DeleteCollection, patchStatus, ...).
var (
	destructiveStems = []string{"delete", "remove", "destroy", "drop"}
	mutatingStems    = []string{"create", "update", "patch", "write", "set", "apply"}
	safePrefixes     = []string{"get", "list", "read", "describe", "watch", "search", "query", "fetch"}
)

// Classify derives the risk classification from the last segment of a dotted
// canonical name.
func Classify(name string) Classification {
	seg := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		seg = name[i+1:]
	}
	seg = strings.ToLower(seg)

	for _, stem := range destructiveStems {
		if strings.Contains(seg, stem) {
			return ClassDestructive
		}
	}
	for _, stem := range mutatingStems {
		if strings.Contains(seg, stem) {
			return ClassMutating
		}
	}
	for _, prefix := range safePrefixes {
		if strings.HasPrefix(seg, prefix) {
			return ClassSafe
		}
	}
	return ClassUnknown
}
