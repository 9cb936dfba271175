package labeler

import "time"

// HTTPRequestTimeout is the default timeout for all HTTP requests to Planning Center.
const HTTPRequestTimeout = 60 * time.Second

// UserAgent is sent on web (non-API) requests; the login flow serves a
// different page to clients without a browser user agent.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
