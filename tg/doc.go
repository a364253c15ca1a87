// Package tg contains the Telegram wire types and error values shared by
// the tgdispatch dispatcher and its API client.
//
// Only the slice of the Bot API surface that the dispatcher actually
// touches is modeled here: incoming updates with their message payloads,
// the users and chats attached to them, parse modes, and the error
// envelope returned by failed API calls.
package tg
