// Package testutil provides test helpers for exercising the dispatcher
// against a fake Telegram Bot API: an httptest-backed mock server, request
// captures, and canned response envelopes for the two methods the
// dispatcher calls (sendMessage and getUpdates).
package testutil
