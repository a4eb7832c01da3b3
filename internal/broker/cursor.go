package broker

import (
	"strconv"
)

// ReadEpochCursor recovers an integer epoch cursor from a stream's head
// queue. If the head queue is empty or its body cannot be parsed as a
// decimal integer, def is returned instead — this is the
// "malformed/missing cursor falls back to a known default" policy from
// §7, category 5 of SPEC_FULL.md.
func (c *Client) ReadEpochCursor(s Stream, def int64) (int64, error) {
	body, ok, err := c.ConsumeHead(s)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	v, parseErr := strconv.ParseInt(string(body), 10, 64)
	if parseErr != nil {
		return def, nil
	}
	return v, nil
}

// EpochCursorBody encodes an integer epoch as an ASCII decimal body, the
// wire format for the compute stream (§6 of SPEC_FULL.md: "Message body
// for Compute is an ASCII decimal epoch"). The caller is responsible for
// publishing it via Produce.
func EpochCursorBody(epoch int64) []byte {
	return []byte(strconv.FormatInt(epoch, 10))
}
