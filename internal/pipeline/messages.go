package pipeline

// messages.go maps run errors to messages with codes for operators.
//
// Codes are grouped by the stage that failed:
//
//	ACQ001    - the feed could not be downloaded
//	DEC001    - the download is not a valid gzip archive
//	DEC002    - the downloaded archive is missing
//	PARSE001  - a feed row is malformed
//	SCHEMA001 - the feed header lacks columns a required table needs
//	LOAD001   - the database rejected a write
//	SINK001   - the database could not be opened
//	RUN001    - another load is already running
//	RUN002    - no run has the requested id
//	ERR000    - anything else

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/catalog-etl/internal/acquire"
	"github.com/JonMunkholm/catalog-etl/internal/core"
)

// UserMessage is a readable description of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// String formats the message as "Message (Code: X). Action".
func (m UserMessage) String() string {
	if m.Action == "" {
		return fmt.Sprintf("%s (Code: %s)", m.Message, m.Code)
	}
	return fmt.Sprintf("%s (Code: %s). %s", m.Message, m.Code, m.Action)
}

type errorMatch struct {
	target error
	msg    UserMessage
}

// errorMatches is checked in order; more specific causes come before the
// kind they are wrapped in.
var errorMatches = []errorMatch{
	{
		target: ErrRunInProgress,
		msg: UserMessage{
			Message: "A catalog load is already running",
			Action:  "Wait for the current run to finish and try again",
			Code:    "RUN001",
		},
	},
	{
		target: ErrRunNotFound,
		msg: UserMessage{
			Message: "Run not found",
			Action:  "Check the run id; only recent runs are kept",
			Code:    "RUN002",
		},
	},
	{
		target: acquire.ErrSourceNotFound,
		msg: UserMessage{
			Message: "The downloaded feed file is missing",
			Action:  "Check that the work directory is writable and not cleaned concurrently",
			Code:    "DEC002",
		},
	},
	{
		target: ErrDecompression,
		msg: UserMessage{
			Message: "The feed is not a valid gzip archive",
			Action:  "Check the feed URL points to a .csv.gz file",
			Code:    "DEC001",
		},
	},
	{
		target: ErrAcquisition,
		msg: UserMessage{
			Message: "The feed could not be downloaded",
			Action:  "Check the feed URL and network access, then retry",
			Code:    "ACQ001",
		},
	},
	{
		target: core.ErrSchemaMismatch,
		msg: UserMessage{
			Message: "The feed header is missing required columns",
			Action:  "Compare the feed header with the products and pricing columns",
			Code:    "SCHEMA001",
		},
	},
	{
		target: ErrProjection,
		msg: UserMessage{
			Message: "The feed header is missing required columns",
			Action:  "Compare the feed header with the products and pricing columns",
			Code:    "SCHEMA001",
		},
	},
	{
		target: ErrParse,
		msg: UserMessage{
			Message: "The feed contains a malformed row",
			Action:  "Fix the row reported in the log; chunks before it were loaded",
			Code:    "PARSE001",
		},
	},
	{
		target: ErrLoad,
		msg: UserMessage{
			Message: "The database rejected a write",
			Action:  "Check that the tables exist (run migrate) and the database is reachable",
			Code:    "LOAD001",
		},
	},
	{
		target: ErrSinkOpen,
		msg: UserMessage{
			Message: "Unable to open the database",
			Action:  "Check the database URL and that the server is running",
			Code:    "SINK001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the server log for details",
	Code:    "ERR000",
}

// Describe maps err to a UserMessage. A nil error yields the zero value.
func Describe(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, m := range errorMatches {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}
	return defaultMessage
}
