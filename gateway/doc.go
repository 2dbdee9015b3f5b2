// Package gateway describes the boundary to the vendor trading engine.
//
// Outbound calls go through Engine. Each one only says whether the request was
// accepted for processing; the real outcome arrives later through Handler,
// on goroutines owned by the engine, possibly duplicated and out of order.
package gateway
