package model

// BulkResponse is the part of a bulk API reply needed to find item failures.
// The API answers 200 even when some items fail.
type BulkResponse struct {
	Took   int        `json:"took"`
	Errors bool       `json:"errors"`
	Items  []BulkItem `json:"items"`
}

// BulkItem maps the action name ("index", "create", ...) to its result.
type BulkItem map[string]BulkItemResult

type BulkItemResult struct {
	ID     string     `json:"_id"`
	Index  string     `json:"_index"`
	Status int        `json:"status"`
	Error  *ItemError `json:"error,omitempty"`
}

type ItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ErrorResponse is the body of a failed non-bulk request.
type ErrorResponse struct {
	Error  ItemError `json:"error"`
	Status int       `json:"status"`
}
