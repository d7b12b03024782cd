// Package logging wraps go.uber.org/zap with the field vocabulary SysDB's
// store, collector, and frontend server share: component, host, conn_id.
// Call sites stay as thin as a bare log.Printf while gaining structured
// fields and level control.
package logging
