// Value package defines the kind lattice (boolean, numeric, string, set)
// that expression nodes advertise and dispatch on, and the identifier set
// types a Set kind evaluates to.
package value

// Totals used by derived accessors when the underlying field is absent, ie
// retweeter of a status that is not a retweet. The SQL side must coalesce
// to the same values.
const (
	DefaultNumeric int64 = -1
	DefaultString        = ""
	DefaultBoolean       = false
)
