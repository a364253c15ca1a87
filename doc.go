// Package tgdispatch is a process-wide priority dispatcher for Telegram
// bot traffic. It pairs a prioritized outbound pipeline with an inbound
// long-polling loop behind a single shared instance.
//
// Outbound, messages flow through two bounded queues drained by one
// background sender: direct messages (addressed to a specific chat)
// always preempt broadcasts (addressed to the configured channel), and a
// configurable delay between sends keeps the bot under Telegram's rate
// limits. Enqueueing never blocks the caller.
//
// Inbound, a poll loop fetches updates, tracks the confirmation offset,
// filters by an optional sender allow-list, and fans each update out to
// the registered handlers in registration order.
//
// Typical use goes through the shared instance:
//
//	bot := tgdispatch.Default()
//	if err := bot.Initialize(); err != nil {
//		log.Fatal(err)
//	}
//	defer bot.Shutdown()
//
//	bot.AddHandler(func(u tg.Update) error {
//		if msg := u.Msg(); msg != nil {
//			return bot.SendDirect("got it", msg.Chat.ID)
//		}
//		return nil
//	})
//
//	bot.SendBroadcast("service started")
//
// Initialize reads settings from the environment (see Config) unless
// overridden with WithConfig, and AddHandler starts receiving updates as
// soon as the first handler is registered. Tests create isolated
// instances with New and inject a fake API via WithAPI.
package tgdispatch
