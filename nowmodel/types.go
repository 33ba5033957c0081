// Package nowmodel implements the Model catalog of spec §4.M: the
// vertex/edge/property entity definitions that give every stored
// record its shape, plus id assignment and offset derivation.
//
// Catalog entries are fixed-width binary records, in the same
// hand-rolled encode/decode style the teacher package uses for its
// document header (header.go): no reflection, no schema evolution
// beyond what a version byte buys us.
package nowmodel

import "github.com/toschoo/nowdb-go/record"

// Vertex is one declared vertex type ("CREATE TYPE").
type Vertex struct {
	RoleID  uint32
	Stamped bool // whether vertices of this type carry a timestamp
	Num     uint16
	Ctrl    uint32
	Size    uint32
	Name    string
}

// Property is one declared property of a Vertex type.
type Property struct {
	PropID uint64
	RoleID uint32
	Pos    uint32
	Value  record.ValueType
	PK     bool
	Stamp  bool
	Inc    bool // auto-incrementing
	Off    uint32
	Name   string
}

// Edge is one declared edge type ("CREATE EDGE").
type Edge struct {
	RoleID      uint32
	Origin      uint32 // origin Vertex.RoleID
	Destin      uint32 // destin Vertex.RoleID
	LabelType   record.ValueType
	WeightType  record.ValueType
	Weight2Type record.ValueType
	Num         uint16
	Size        uint32
	Name        string

	// StampPropID names the PEdge designated as this edge type's
	// timestamp column; that PEdge addresses the record's TMSTMP slot.
	// 0 when no property was tagged Stamp.
	StampPropID uint64
}

// PEdge is one declared property of an Edge type, classified into one
// of the fixed edge slots (origin/destin/stamp) or a free position
// among the trailing weight/label columns.
type PEdge struct {
	PropID uint64
	RoleID uint32 // owning Edge.RoleID
	Pos    uint32
	Value  record.ValueType
	Origin bool
	Destin bool
	Stamp  bool
	Off    uint32
	Name   string
}

// Kind is the result of whatIs(name): whether a declared name refers
// to a vertex type or an edge type.
type Kind int

const (
	KindUnknown Kind = iota
	KindVertex
	KindEdge
)
