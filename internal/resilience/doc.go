// Package resilience provides fault tolerance patterns for external calls.
//
// The circuitbreaker subpackage protects the booking platform API and the
// dedup database: when either dependency fails persistently, the circuit
// opens and dispatch cycles degrade to "zero candidates" immediately
// instead of stalling on timeouts. There is deliberately no retry helper
// here; a failed send is simply left eligible for the next poll cycle.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.BookingAPIConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callBookingAPI()
//	})
package resilience
