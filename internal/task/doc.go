// Package task defines the task model shared by the API client, the store
// and the terminal UI.
//
// The backend represents a task as:
//
//	{
//	  "id": 7,
//	  "title": "Write release notes",
//	  "description": "Optional details",
//	  "completed": false,
//	  "created_at": "2024-05-01T10:00:00.123456"
//	}
//
// # Timestamps
//
// created_at is accepted with or without a zone designator. Values without
// one are read as UTC.
//
// # Ordering
//
// A freshly loaded collection is ordered newest first (descending id). Later
// local mutations never re-sort: creations are prepended, toggles and
// deletions keep the position of every other task.
//
// # Validation
//
// ValidateJSON and ValidateListJSON check raw server payloads against an
// embedded JSON Schema before they are decoded.
package task
