package probe

// Meta identifies a run for the report header.
type Meta struct {
	Title  string
	Target string
	RunID  string
}

// Reporter receives the run as it happens. Implementations live in the
// output package.
type Reporter interface {
	WriteHeader(meta Meta) error
	WriteSection(title string) error
	WriteResult(r Result) error
	WriteFooter(s Summary) error
}
