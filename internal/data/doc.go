// Package data implements Datum, the tagged value carried by attributes,
// query results, and protocol payloads throughout SysDB.
//
// A Datum is a closed tagged union: Null, Integer, Decimal, String,
// Datetime, Binary, Regex, or a homogeneous Array of one of the scalar
// tags. Comparison, arithmetic, formatting, and parsing all dispatch on
// the tag; see the type's method set for the exact rules each operation
// follows.
package data
