package bus

import (
	"strings"
	"time"
)

// Kind names one domain event. Publishers use the constants below; the
// type keeps arbitrary strings from leaking onto the bus.
type Kind string

// Event represents a domain event published on the bus.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the core. Subscribers filter by namespace
// prefix, e.g. "store." receives every store mutation event.
const (
	KindMessageUpserted  Kind = "store.message_upserted"
	KindContactUpserted  Kind = "store.contact_upserted"
	KindAccountSwitched  Kind = "store.account_switched"
	KindNotification     Kind = "store.notification"
	KindPushStatus       Kind = "push.status_changed"
	KindFeedSubscribed   Kind = "feed.subscribed"
	KindFeedUnsubscribed Kind = "feed.unsubscribed"
	KindSendAck          Kind = "send.ack"
	KindSendFailed       Kind = "send.failed"
)

// In reports whether the kind falls under the given namespace prefix.
func (k Kind) In(prefix string) bool {
	return strings.HasPrefix(string(k), prefix)
}
