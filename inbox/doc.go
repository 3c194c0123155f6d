// Package inbox provides the realtime socket for Courier inbox events.
//
// The socket receives new-message and read-state events for the
// signed-in user and can mark messages read without polling. It is a
// transport only: list state and rendering belong to the app.
//
// Usage:
//
//	sock := inbox.NewSocket(client)
//	sock.OnMessage(func(msg inbox.Message) { ... })
//	err := sock.Start(ctx)
package inbox
