// Package codec converts values to and from their literal text form.
//
// The literal syntax is:
//
//	Number    -12, 4.50, +7           (no exponent form)
//	Text      "say \"hi\"\n"          (escapes \" \\ \n \r \t \uXXXX)
//	Boolean   true, FALSE             (lowercase on output)
//	Temporal  2024-03-01 12:00:00     (see package temporal)
//	Tagged    Missing, Number(4.5)
//	Record    (x: 1, y: "hi")
//	Array     [1, 2, 3], []
//
// Parse and Print are type directed: the expected datatype.Type decides how
// text is read and how values are rendered. For every value v of type T,
// Parse(Print(v, T), T) yields a value equal to v.
//
// Malformed input produces errors for which errors.IsUserData is true; a Go
// value that does not match its type produces an internal error.
package codec
