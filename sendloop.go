package tgdispatch

import (
	"context"
	"strconv"
	"time"
)

// broadcastWait bounds how long the sender loop blocks on the broadcast
// queue before re-checking the direct queue, so a direct message enqueued
// during a quiet stretch is picked up within a second.
const broadcastWait = time.Second

// senderLoop drains the two outbound queues until stop closes. Direct
// messages always win: the broadcast queue is only consulted when the
// direct queue is empty, and even then only for a bounded wait.
func (d *Dispatcher) senderLoop(api API, cfg Config, stop <-chan struct{}, direct <-chan directItem, broadcast <-chan string) {
	d.logger.Debug("sender loop started")
	defer d.logger.Debug("sender loop stopped")

	channel := cfg.NormalizedChannelID()
	for {
		select {
		case <-stop:
			return
		default:
		}

		var delivered bool
		select {
		case item := <-direct:
			d.deliver(api, strconv.FormatInt(item.chatID, 10), item.text)
			delivered = true
		default:
			select {
			case item := <-direct:
				d.deliver(api, strconv.FormatInt(item.chatID, 10), item.text)
				delivered = true
			case text := <-broadcast:
				d.deliver(api, channel, text)
				delivered = true
			case <-stop:
				return
			case <-time.After(broadcastWait):
			}
		}

		if delivered && cfg.SendDelay > 0 {
			select {
			case <-stop:
				return
			case <-time.After(cfg.SendDelay):
			}
		}
	}
}

// senderExited clears the sender liveness flag when the loop returns, so
// a loop that outlived a timed-out Shutdown does not block a later
// Initialize from starting a fresh one. The generation check keeps a
// stale loop from clobbering the flag of its successor.
func (d *Dispatcher) senderExited(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.senderGen == gen {
		d.senderRunning = false
	}
}

// deliver performs one send. Failures are logged and the message dropped;
// the loop never retries or blocks on a bad destination.
func (d *Dispatcher) deliver(api API, chatID, text string) {
	if err := api.SendMessage(context.Background(), chatID, text); err != nil {
		d.logger.Error("send failed, dropping message", "chat_id", chatID, "error", err)
	}
}
