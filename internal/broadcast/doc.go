// Package broadcast implements the server-side fan-out machinery: the
// subscription registry grouping live connections by question, and the
// notification hub that sequences cache invalidation, snapshot refetch and
// group broadcast around every completed write.
//
// Per-connection write goroutines own all websocket writes. Deliveries are
// bounded by a timeout; a slow or dead member is dropped from every group
// without affecting delivery to the rest.
package broadcast
