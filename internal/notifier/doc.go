// Package notifier tells owners about tasks a scheduling pass could not place.
//
// It subscribes to eventbus.TypePassCompleted, formats a short message for
// passes that left tasks unschedulable or uncommitted, and delivers it through
// a Sender (Telegram in production). Delivery is asynchronous: a bounded queue
// feeds one worker that is rate-limited and retries with backoff. Owners
// without a mapped chat are skipped.
package notifier
