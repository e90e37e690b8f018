package unit

import "strings"

var primitives = map[string]bool{
	"int":     true,
	"long":    true,
	"float":   true,
	"double":  true,
	"boolean": true,
	"byte":    true,
	"char":    true,
	"short":   true,
	"void":    true,
}

// InternalName converts a dot separated name into its slash separated form.
// Slash separated names are returned unchanged.
func InternalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// BinaryName converts a slash separated name into its dot separated form.
func BinaryName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

// IsPrimitive reports whether t names a primitive value type.
func IsPrimitive(t string) bool {
	return primitives[t]
}

// HasPrefix reports whether name lies inside the namespace prefix.
// Both arguments may use either separator.
func HasPrefix(name, prefix string) bool {
	return strings.HasPrefix(InternalName(name), InternalName(prefix))
}
