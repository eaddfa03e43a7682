package wanted

// CacheHint tells the host how long rendered output may be cached.
// TTLSeconds of 0 means the output must not be cached.
type CacheHint struct {
	TTLSeconds int `json:"ttl_seconds"`
}

// Output collects the side effects of one render pass of one page: the
// properties to persist against the page and the cache hint for the
// rendered text. It is created by the host and passed through every tag
// rendered on the page.
type Output struct {
	PageID     int64
	Properties map[string]string
	CacheHint  *CacheHint
}

// NewOutput starts a render pass for a page. pageID is 0 for pages that
// do not exist yet.
func NewOutput(pageID int64) *Output {
	return &Output{
		PageID:     pageID,
		Properties: make(map[string]string),
	}
}

// SetProperty records a property to persist once the render completes
func (o *Output) SetProperty(name, value string) {
	if o.Properties == nil {
		o.Properties = make(map[string]string)
	}
	o.Properties[name] = value
}

// Property returns a property set earlier in this render pass
func (o *Output) Property(name string) (string, bool) {
	value, ok := o.Properties[name]
	return value, ok
}

// UpdateCacheExpiry lowers the allowed cache lifetime; the shortest
// requested lifetime wins
func (o *Output) UpdateCacheExpiry(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	if o.CacheHint == nil || seconds < o.CacheHint.TTLSeconds {
		o.CacheHint = &CacheHint{TTLSeconds: seconds}
	}
}

// Cacheable reports whether the rendered output may be cached at all
func (o *Output) Cacheable() bool {
	return o.CacheHint == nil || o.CacheHint.TTLSeconds > 0
}
