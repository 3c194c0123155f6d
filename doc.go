// Package courier provides a Go client SDK for the Courier push
// notification platform.
//
// It manages the signed-in user's credentials (persisted across process
// restarts), keeps platform device tokens (APNs, FCM) in sync with the
// backend, and reports notification lifecycle events (delivered,
// clicked) back to the backend — including from inside a time-boxed
// notification service extension, where content delivery is raced
// against the OS deadline.
//
// The inbox subpackage provides an authenticated realtime socket for
// in-app inbox events.
package courier
