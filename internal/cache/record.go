package cache

// Record is an immutable domain record payload.
// It has no identity beyond its content; two records with equal payloads
// stored separately are still distinct handles.
type Record struct {
	info string
}

func NewRecord(info string) Record {
	return Record{info: info}
}

func (r Record) Info() string {
	return r.info
}

func (r Record) String() string {
	return r.info
}
