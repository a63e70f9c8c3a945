package caldav

// Calendar is one collection discovered on the CalDAV server.
type Calendar struct {
	Path        string
	DisplayName string
}
