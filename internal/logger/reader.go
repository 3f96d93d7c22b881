package logger

// Reader is the pluggable audit-reader collaborator: a day-partitioned
// external log store that can replace the flat-file trail as the backing for
// audit queries. Implementations live outside this repository; the interface
// is defined here so the query surfaces can consume either backing.
type Reader interface {
	// ReadLogs returns the entries for one category on one date (YYYY-MM-DD),
	// optionally filtered to a single user. userFilter "" means all users.
	ReadLogs(category, date, userFilter string) ([]map[string]any, error)

	// ListAvailableDates returns the dates (YYYY-MM-DD) for which entries
	// exist in a category, newest first.
	ListAvailableDates(category string) ([]string, error)
}
