package tools

// Permission model: each tool declares a required set of permission
// strings (e.g. "vfs.write", "net", "execute_code"); a caller carries
// an effective set computed from a named profile plus explicit
// allow/deny overrides.

// Profiles are preset permission bundles an operator can select by
// name instead of enumerating permission strings.
var Profiles = map[string][]string{
	"minimal": {},
	"coding":  {"vfs.read", "vfs.write"},
	"full":    {"vfs.read", "vfs.write", "net", "execute_code"},
}

// Policy computes an effective permission set for one caller from a
// profile plus explicit overrides.
type Policy struct {
	Profile string
	Allow   []string
	Deny    []string
}

// Effective resolves the policy's profile and allow/deny overrides into
// the final permission set passed as InvokeOpts.Permissions.
func (p Policy) Effective() []string {
	base := Profiles[p.Profile]
	set := make(map[string]bool, len(base)+len(p.Allow))
	for _, perm := range base {
		set[perm] = true
	}
	for _, perm := range p.Allow {
		set[perm] = true
	}
	for _, perm := range p.Deny {
		delete(set, perm)
	}
	out := make([]string, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	return out
}
