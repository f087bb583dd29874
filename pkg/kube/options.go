package kube

// Option configures a Client.
type Option func(*Client)

// WithLabelSelector restricts watches and lists to pods matching the selector.
// Default: no selector, every pod in the namespace.
func WithLabelSelector(sel string) Option {
	return func(c *Client) { c.labelSelector = sel }
}

// WithWatchTimeout sets the server-side timeout requested for each watch, in
// seconds. The API server may still end the stream earlier.
// Default: effectively unbounded.
func WithWatchTimeout(seconds int64) Option {
	return func(c *Client) { c.watchTimeoutSeconds = seconds }
}
