// Package core provides the vehicle sync pipeline.
//
// # Error Codes Reference
//
// This file maps technical errors to user-facing messages with codes for
// support reference. Callers of the trigger see the message and code;
// the technical error only goes to the logs.
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Access denied: The spreadsheet refused access
//	         Patterns: "status 403", "permission"
//
//	SRC002 - Range not found: A source sheet or range does not exist
//	         Patterns: "status 404", "unable to parse range"
//
//	SRC003 - Quota exceeded: The spreadsheet API quota is exhausted
//	         Patterns: "status 429", "quota"
//
//	SRC004 - Source file missing: A CSV source file does not exist
//	         Patterns: "no such file"
//
//	SRC005 - Primary unreadable: The vehicle list could not be read
//	         Patterns: "primary source unreadable"
//
// # Store Errors (STO001-STO099)
//
//	STO001 - Duplicate key: A vehicle with this id already exists
//	STO002 - Constraint: A value was rejected by the database
//	STO003 - Missing table: The vehicle table does not exist
//	STO004 - Connection refused: Unable to connect to database
//	STO005 - Connection reset: Database connection was interrupted
//	STO006 - Deadlock: Database was busy with conflicting operations
//	STO007 - Existing ids: Stored vehicles could not be read
//
// # Sync Errors (SYN001-SYN099)
//
//	SYN001 - Vehicle not found: The id is not in the source data
//	SYN002 - System busy: Another sync is running
//	SYN003 - Unknown action: The action is not a sync action
//	SYN004 - Unknown mode: The reconcile mode is not supported
//	SYN005 - Cancelled: The request was cancelled
//	SYN006 - Timeout: The sync did not finish in time
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Duplicate id: The vehicle list repeats an id
//	VAL002 - Unreadable cell: A cell did not match its column type
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Missing id: sync-vehicle needs an id
//	REQ002 - Bad body: The request body is not valid JSON
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// # Pattern Matching
//
// Patterns are matched case-insensitively with strings.Contains. The first
// match wins, so specific patterns come before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Source Errors (SRC001-SRC005)
	// =========================================================================
	{
		pattern: "status 403",
		msg:     UserMessage{Message: "The spreadsheet refused access", Action: "Check the API key or share the sheet with the service account", Code: "SRC001"},
	},
	{
		pattern: "permission",
		msg:     UserMessage{Message: "The spreadsheet refused access", Action: "Check the API key or share the sheet with the service account", Code: "SRC001"},
	},
	{
		pattern: "status 404",
		msg:     UserMessage{Message: "A source sheet or range does not exist", Action: "Check SOURCE_RANGE_OVERRIDES and the sheet tab names", Code: "SRC002"},
	},
	{
		pattern: "unable to parse range",
		msg:     UserMessage{Message: "A source sheet or range does not exist", Action: "Check SOURCE_RANGE_OVERRIDES and the sheet tab names", Code: "SRC002"},
	},
	{
		pattern: "status 429",
		msg:     UserMessage{Message: "The spreadsheet API quota is exhausted", Action: "Wait a minute before syncing again", Code: "SRC003"},
	},
	{
		pattern: "quota",
		msg:     UserMessage{Message: "The spreadsheet API quota is exhausted", Action: "Wait a minute before syncing again", Code: "SRC003"},
	},
	{
		pattern: "no such file",
		msg:     UserMessage{Message: "A source file does not exist", Action: "Check CSV_SOURCE_DIR and the file names", Code: "SRC004"},
	},
	{
		pattern: "primary source unreadable",
		msg:     UserMessage{Message: "The vehicle list could not be read", Action: "Please try again; check the source configuration if it persists", Code: "SRC005"},
	},

	// =========================================================================
	// Store Errors (STO001-STO007)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg:     UserMessage{Message: "A vehicle with this id already exists", Action: "Run sync-all to update existing vehicles", Code: "STO001"},
	},
	{
		pattern: "violates",
		msg:     UserMessage{Message: "A value was rejected by the database", Action: "Check the vehicle's source rows", Code: "STO002"},
	},
	{
		pattern: "does not exist",
		msg:     UserMessage{Message: "The vehicle table does not exist", Action: "Run evsync migrate", Code: "STO003"},
	},
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "STO004"},
	},
	{
		pattern: "connection reset",
		msg:     UserMessage{Message: "Database connection was interrupted", Action: "Please try again", Code: "STO005"},
	},
	{
		pattern: "deadlock",
		msg:     UserMessage{Message: "Database was busy with conflicting operations", Action: "Please try again", Code: "STO006"},
	},
	{
		pattern: "list existing ids",
		msg:     UserMessage{Message: "Stored vehicles could not be read", Action: "Please try again in a few moments", Code: "STO007"},
	},

	// =========================================================================
	// Sync Errors (SYN001-SYN006)
	// =========================================================================
	{
		pattern: "not found in source data",
		msg:     UserMessage{Message: "Vehicle not found in source data", Action: "Check the id against the vehicle sheet", Code: "SYN001"},
	},
	{
		pattern: "too many concurrent syncs",
		msg:     UserMessage{Message: "Another sync is already running", Action: "Please wait a moment and try again", Code: "SYN002"},
	},
	{
		pattern: "unknown sync action",
		msg:     UserMessage{Message: "Unknown sync action", Action: "Use sync-all, sync-latest, sync-vehicle or debug", Code: "SYN003"},
	},
	{
		pattern: "unknown sync mode",
		msg:     UserMessage{Message: "Unknown sync mode", Action: "Use full, latest or single", Code: "SYN004"},
	},
	{
		pattern: "context canceled",
		msg:     UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "SYN005"},
	},
	{
		pattern: "context deadline exceeded",
		msg:     UserMessage{Message: "Sync timed out", Action: "Please try again; raise SYNC_TIMEOUT if it keeps happening", Code: "SYN006"},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL002)
	// =========================================================================
	{
		pattern: "duplicate id",
		msg:     UserMessage{Message: "The vehicle list repeats an id", Action: "Remove or rename the duplicate row", Code: "VAL001"},
	},
	{
		pattern: "cannot read",
		msg:     UserMessage{Message: "A cell did not match its column type", Action: "Check the cell named in the warning", Code: "VAL002"},
	},

	// =========================================================================
	// Request Errors (REQ001-REQ002)
	// =========================================================================
	{
		pattern: "id is required",
		msg:     UserMessage{Message: "A vehicle id is required", Action: "Pass id with sync-vehicle", Code: "REQ001"},
	},
	{
		pattern: "invalid request body",
		msg:     UserMessage{Message: "The request body is not valid JSON", Action: `Send {"action": "...", "id": "..."}`, Code: "REQ002"},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg:     UserMessage{Message: "Too many requests", Action: "Please wait a moment before trying again", Code: "RATE001"},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. It
// returns the first pattern match, or the ERR000 fallback.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
