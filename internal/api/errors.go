package api

import "net/http"

// ErrorCode identifies why a request was rejected
type ErrorCode int

const (
	CodeUnspecified ErrorCode = 1000 + iota
	CodeMissingBody
	CodeIncorrectClientVersion
	CodeIncorrectClientAuth
	CodeMissingUserID
	CodeEmptyQuestion
	CodeMissingAPICommand
	CodeDeleteAllFailed
	CodeDeleteOneFailed
	CodeMissingWhenStored
	CodeReportFailed
	CodeEmptyStatement
	CodeUpdateFailed
	CodeReportAPIKeyExceeded
)

var messages = map[ErrorCode]string{
	CodeUnspecified:            "error with no message yet defined",
	CodeMissingBody:            "missing body-json field",
	CodeIncorrectClientVersion: "incorrect client version",
	CodeIncorrectClientAuth:    "incorrect client authentication",
	CodeMissingUserID:          "missing userId",
	CodeEmptyQuestion:          "missing a complete response, maybe it was not a question",
	CodeMissingAPICommand:      "missing a field that specifies which action to take",
	CodeDeleteAllFailed:        "could not delete all memories",
	CodeDeleteOneFailed:        "could not delete the memory",
	CodeMissingWhenStored:      "missing whenStored",
	CodeReportFailed:           "could not compile the report",
	CodeEmptyStatement:         "missing a statement to remember",
	CodeUpdateFailed:           "could not update the memory",
	CodeReportAPIKeyExceeded:   "the report api key does not allow that action",
}

// Message returns the default text for the code
func (c ErrorCode) Message() string {
	if msg, ok := messages[c]; ok {
		return msg
	}
	return messages[CodeUnspecified]
}

// ErrorResponse is the body of every rejected request
type ErrorResponse struct {
	Success       bool      `json:"success"`
	ErrorCode     ErrorCode `json:"errorCode"`
	ErrorMessage  string    `json:"errorMessage"`
	ServerVersion string    `json:"serverVersion"`
}

func errorResponse(w http.ResponseWriter, code ErrorCode, override string) ErrorResponse {
	msg := override
	if msg == "" {
		msg = code.Message()
	}
	resp := ErrorResponse{
		ErrorCode:     code,
		ErrorMessage:  msg,
		ServerVersion: serverVersion,
	}
	jsonResponse(w, http.StatusBadRequest, resp)
	return resp
}
