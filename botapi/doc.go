// Package botapi implements the HTTP client for the two Telegram Bot API
// methods the dispatcher drives: sendMessage and getUpdates.
//
// The client carries the resilience layer so callers do not have to:
// a global send-rate limiter (golang.org/x/time/rate), a circuit breaker
// (sony/gobreaker), bounded response reads, TLS 1.2+ enforcement, and bot
// token redaction in transport errors.
//
//	client, err := botapi.New(botapi.Config{Token: token})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.SendMessage(ctx, "@mychannel", "hello")
//	updates, err = client.GetUpdates(ctx, offset, 30)
package botapi
