package events

// NewScanEvent builds a scan lifecycle event carrying job details in Data.
func NewScanEvent(eventType EventType, title, message string, data map[string]interface{}) Event {
	return Event{
		Type:    eventType,
		Source:  "scanner",
		Title:   title,
		Message: message,
		Data:    data,
	}
}

// NewSystemEvent builds a general system event.
func NewSystemEvent(eventType EventType, title, message string) Event {
	return Event{
		Type:    eventType,
		Source:  "system",
		Title:   title,
		Message: message,
	}
}
