package schema

// ShapeKind discriminates the closed JSON shape grammar from §3.
type ShapeKind string

const (
	ShapeInt          ShapeKind = "int"
	ShapeReal         ShapeKind = "real"
	ShapeText         ShapeKind = "text"
	ShapeBool         ShapeKind = "bool"
	ShapeUndef        ShapeKind = "undef"
	ShapeArray        ShapeKind = "array"
	ShapeObject       ShapeKind = "object"
	ShapeUnion        ShapeKind = "union"
	ShapeIntersection ShapeKind = "intersection"
)

// Shape is a recursive sum type over the JSON shape grammar:
//
//	shape := scalar | Array(shape) | Object(fields) | Union(v...) | Intersection(n...)
//
// Only the fields relevant to Kind are populated.
type Shape struct {
	Kind ShapeKind

	// Of is the element shape for ShapeArray.
	Of *Shape

	// Fields holds field shapes for ShapeObject. All fields are required
	// unless a field's own shape is a Union containing ShapeUndef.
	Fields map[string]*Shape

	// Values holds the members for ShapeUnion (literal string or int64
	// elements, or *Shape elements such as those Optional adds) or the
	// named alternatives for ShapeIntersection.
	Values []any
}

// Scalar constructs a leaf scalar shape.
func Scalar(kind ShapeKind) *Shape {
	return &Shape{Kind: kind}
}

// Array constructs a homogeneous array shape.
func Array(of *Shape) *Shape {
	return &Shape{Kind: ShapeArray, Of: of}
}

// Object constructs an object shape from named fields.
func Object(fields map[string]*Shape) *Shape {
	return &Shape{Kind: ShapeObject, Fields: fields}
}

// Union constructs a union-of-scalars shape.
func Union(values ...any) *Shape {
	return &Shape{Kind: ShapeUnion, Values: values}
}

// Optional wraps a shape in a Union with ShapeUndef, marking an object
// field as not-required per §3 ("objects have all fields required unless
// the shape is union with undef").
func Optional(s *Shape) *Shape {
	return &Shape{Kind: ShapeUnion, Values: []any{s, Scalar(ShapeUndef)}}
}

// IsOptional reports whether a field shape permits omission.
func (s *Shape) IsOptional() bool {
	if s == nil || s.Kind != ShapeUnion {
		return false
	}
	for _, v := range s.Values {
		if sh, ok := v.(*Shape); ok && sh.Kind == ShapeUndef {
			return true
		}
	}
	return false
}
