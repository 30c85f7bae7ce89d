package exchange

import "errors"

// ErrOrderNotFound reports that the venue has no order for the queried
// clientOrderID. The reconciler treats it as proof the order was never placed.
var ErrOrderNotFound = errors.New("exchange: order not found")

// ErrOrderRejected reports a definitive refusal by the venue at submit time.
var ErrOrderRejected = errors.New("exchange: order rejected")
