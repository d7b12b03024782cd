// Package ast defines the SysQL abstract syntax tree produced by
// internal/parser: tagged nodes for the five top-level commands
// (FETCH, LIST, LOOKUP, STORE, TIMESERIES), operators, iterators, typed
// sibling references, constants, and named field/attribute values
// (spec.md §4.4).
//
// Node kinds are modeled as a closed set of Go types implementing the
// Node interface, one struct per kind: a tagged union represented as Go
// sum types with exhaustive matching, never an integer tag over an
// untyped payload (spec.md §9).
package ast
