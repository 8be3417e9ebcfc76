//go:build !unix

package stderr

// Capture is a no-op outside unix.
type Capture struct{}

// Start returns a capture that diverts nothing.
func Start() (*Capture, error) { return nil, nil }

func (c *Capture) Lines() <-chan string { return nil }

func (c *Capture) Stop() {}
