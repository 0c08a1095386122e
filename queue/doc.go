// Package queue implements the queue policies of emulated links.
//
// All policies are count bounded FIFO queues implementing netemu.Queue and
// netemu.Evicter:
//
//   - LeakyBucket rejects packets while full and only evicts when asked to.
//   - HeadDrop evicts the oldest packet to admit a new one.
//   - Delay releases packets only after a fixed delay.
//
// Use a Factory to create queues without depending on a concrete policy.
package queue
