package broadcast

import "fmt"

// InvalidBroadcastUrlError wraps a relay URL this client could not even
// build or reach (spec.md §7).
type InvalidBroadcastUrlError struct {
	Url string
	Err error
}

func (e *InvalidBroadcastUrlError) Error() string {
	return fmt.Sprintf("broadcast: invalid url %q: %v", e.Url, e.Err)
}

func (e *InvalidBroadcastUrlError) Unwrap() error { return e.Err }

// InvalidBroadcastResponseError wraps a relay response this client could
// not parse or that reported an unexpected status.
type InvalidBroadcastResponseError struct {
	Url string
	Err error
}

func (e *InvalidBroadcastResponseError) Error() string {
	return fmt.Sprintf("broadcast: invalid response from %q: %v", e.Url, e.Err)
}

func (e *InvalidBroadcastResponseError) Unwrap() error { return e.Err }

// BroadcastIdNotFoundError reports a relay 404 for a broadcast id.
type BroadcastIdNotFoundError struct {
	BroadcastId string
}

func (e *BroadcastIdNotFoundError) Error() string {
	return fmt.Sprintf("broadcast: broadcast id %q not found on relay", e.BroadcastId)
}
