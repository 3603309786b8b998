// Package channel implements the duplex link between the control plane and
// the display server.
//
// Commands travel on a connected unixgram socket as frames produced by a
// wire.Codec. Events arrive on a second, bound unixgram socket; each
// datagram starts with an EventID and carries a payload whose layout is
// fixed by a static schema table.
//
// Completion events (read_complete, render_complete, error) resolve
// requests that a queued handler may be waiting on, so they are delivered
// inline on the receiving goroutine and never pass through the queue.
// Every other event is classified into a priority band and submitted to an
// event.Loop:
//
//	page_stop            high
//	stroke (system area) immediate
//	stroke               normal
//	fuel_gauge, viewport,
//	orientation          low
//	everything else      normal
//
// Unknown or malformed datagrams are logged and dropped; the receive loop
// keeps running.
package channel
