package courier

// Version is the SDK semantic version, sent to the backend in the
// User-Agent header of every request.
const Version = "1.2.0"

// userAgent identifies this SDK to the backend.
const userAgent = "courier-go/" + Version
