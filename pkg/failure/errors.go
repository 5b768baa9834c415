package failure

type Severity int

// SeverityFatal errors must be surfaced to the caller as-is;
// SeverityRecoverable errors are safe to retry.
const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

type ClassifiedError interface {
	error
	Severity() Severity
}
