package trace

// FormatSpec is a printf-style specifier the tracer accepts for a captured
// argument.
type FormatSpec struct {
	Label     string
	Specifier string
}

func FormatSpecs() []FormatSpec {
	return []FormatSpec{
		{"char", "%c"},
		{"double/float", "%f"},
		{"int", "%d"},
		{"long", "%l"},
		{"long double", "%lF"},
		{"string/char *", "%s"},
		{"short", "%hi"},
		{"unsigned short", "%hi"},
		{"void *", "%p"},
	}
}
